package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerotrace/internal/config"
	"zerotrace/internal/device"
)

func descriptor(path string) device.Descriptor {
	return device.Descriptor{Path: path, Type: device.MediumSSD, SizeBytes: 1024}
}

func TestExcludedDevice(t *testing.T) {
	guard := NewGuard(config.SecurityConfig{
		ExcludedDevices:    []string{"/dev/sda", "/dev/nvme0*"},
		AllowSystemDevices: true,
	})

	err := guard.Check(descriptor("/dev/sda"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "excluded")

	// Glob-шаблон тоже исключает
	err = guard.Check(descriptor("/dev/nvme0n1"), true)
	require.Error(t, err)

	assert.NoError(t, guard.Check(descriptor("/dev/sdb"), true))
}

func TestRequireForce(t *testing.T) {
	guard := NewGuard(config.SecurityConfig{RequireForce: true, AllowSystemDevices: true})

	err := guard.Check(descriptor("/dev/sdb"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirmation")

	assert.NoError(t, guard.Check(descriptor("/dev/sdb"), true))
}

func TestDemoDevicesBypassPolicy(t *testing.T) {
	guard := NewGuard(config.SecurityConfig{
		ExcludedDevices: []string{"demo://drive0"},
		RequireForce:    true,
	})

	// Демо-устройства не проходят через политику
	assert.NoError(t, guard.Check(descriptor("demo://drive0"), false))
}
