//go:build !linux

package device

// listSystem перечисление блочных устройств поддерживается только
// на Linux
func listSystem() []Descriptor {
	return nil
}
