package device

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
)

// DemoScheme схема путей симулируемых устройств
const DemoScheme = "demo://"

// SimDevice симулируемое устройство в памяти. Используется демо-режимом
// и тестами: ведёт себя как самошифрующийся носитель с набором
// поддерживаемых аппаратных команд.
type SimDevice struct {
	mu           sync.Mutex
	desc         Descriptor
	data         []byte
	key          []byte
	keyDestroyed bool
	supports     map[NativeOp]bool

	// инъекция ошибки записи для тестов: запись по смещению >= failAt
	// возвращает failErr
	failAt  int64
	failErr error
}

// NewSimDevice создаёт симулируемое устройство, заполненное случайным
// содержимым. Набор аппаратных команд зависит от типа носителя.
func NewSimDevice(path string, mediumType MediumType, size int64, model, serial string) *SimDevice {
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		// Fallback к детерминированному заполнению
		for i := range data {
			data[i] = byte(i % 251)
		}
	}

	key := make([]byte, 32)
	rand.Read(key)

	supports := map[NativeOp]bool{}
	switch mediumType {
	case MediumNVMe:
		supports[OpNVMeFormat] = true
		supports[OpCryptoErase] = true
	case MediumSSD:
		supports[OpSanitize] = true
		supports[OpCryptoErase] = true
	case MediumHDD:
		supports[OpSanitize] = true
	}

	return &SimDevice{
		desc: Descriptor{
			Path:      path,
			Type:      mediumType,
			SizeBytes: size,
			Model:     model,
			Serial:    serial,
			Removable: mediumType == MediumRemovable,
		},
		data:     data,
		key:      key,
		supports: supports,
		failAt:   -1,
	}
}

// Descriptor возвращает снимок устройства
func (sd *SimDevice) Descriptor() Descriptor {
	return sd.desc
}

// SetSupports переопределяет поддержку аппаратной команды
func (sd *SimDevice) SetSupports(op NativeOp, supported bool) {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	sd.supports[op] = supported
}

// FailWritesAt включает инъекцию ошибки записи начиная со смещения
func (sd *SimDevice) FailWritesAt(offset int64, err error) {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	sd.failAt = offset
	sd.failErr = err
}

// KeyDestroyed сообщает, был ли уничтожен ключ шифрования
func (sd *SimDevice) KeyDestroyed() bool {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	return sd.keyDestroyed
}

// OpenTarget открывает адресуемое пространство устройства
func (sd *SimDevice) OpenTarget() Target {
	return &simTarget{dev: sd}
}

// destroyKey уничтожает ключ шифрования носителя
func (sd *SimDevice) destroyKey() {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	if !sd.keyDestroyed {
		memguard.WipeBytes(sd.key)
		sd.keyDestroyed = true
	}
}

// zeroData затирает содержимое нулями (симуляция sanitize)
func (sd *SimDevice) zeroData() {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	for i := range sd.data {
		sd.data[i] = 0
	}
}

// simTarget цель поверх симулируемого устройства
type simTarget struct {
	dev *SimDevice
}

func (st *simTarget) ReadAt(p []byte, off int64) (int, error) {
	st.dev.mu.Lock()
	defer st.dev.mu.Unlock()

	if off >= int64(len(st.dev.data)) {
		return 0, fmt.Errorf("read beyond device end: offset %d", off)
	}
	n := copy(p, st.dev.data[off:])
	return n, nil
}

func (st *simTarget) WriteAt(p []byte, off int64) (int, error) {
	st.dev.mu.Lock()
	defer st.dev.mu.Unlock()

	if st.dev.failAt >= 0 && off >= st.dev.failAt && st.dev.failErr != nil {
		return 0, st.dev.failErr
	}

	if off >= int64(len(st.dev.data)) {
		return 0, fmt.Errorf("write beyond device end: offset %d", off)
	}
	n := copy(st.dev.data[off:], p)
	if n < len(p) {
		return n, fmt.Errorf("short write at offset %d", off)
	}
	return n, nil
}

func (st *simTarget) Size() int64 {
	return st.dev.desc.SizeBytes
}

func (st *simTarget) Sync() error { return nil }

func (st *simTarget) Close() error { return nil }

// SimRegistry реестр симулируемых устройств
type SimRegistry struct {
	mu      sync.RWMutex
	devices map[string]*SimDevice
}

var demoRegistry = &SimRegistry{devices: make(map[string]*SimDevice)}

// Demo возвращает глобальный реестр демо-устройств
func Demo() *SimRegistry {
	return demoRegistry
}

// Register добавляет устройство в реестр
func (r *SimRegistry) Register(dev *SimDevice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[dev.desc.Path] = dev
}

// Lookup ищет устройство по пути
func (r *SimRegistry) Lookup(path string) (*SimDevice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[path]
	return dev, ok
}

// List возвращает дескрипторы всех устройств реестра
func (r *SimRegistry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]Descriptor, 0, len(r.devices))
	for _, dev := range r.devices {
		descs = append(descs, dev.desc)
	}
	return descs
}

// Reset очищает реестр (используется тестами)
func (r *SimRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = make(map[string]*SimDevice)
}

// SimEraser реализует NativeEraser для симулируемых устройств
type SimEraser struct {
	registry *SimRegistry
}

// NewSimEraser создаёт эрейзер поверх реестра
func NewSimEraser(registry *SimRegistry) *SimEraser {
	return &SimEraser{registry: registry}
}

// Supports проверяет поддержку команды симулируемым устройством
func (se *SimEraser) Supports(desc Descriptor, op NativeOp) bool {
	dev, ok := se.registry.Lookup(desc.Path)
	if !ok {
		return false
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.supports[op]
}

// Execute выполняет аппаратную команду над симулируемым устройством
func (se *SimEraser) Execute(ctx context.Context, desc Descriptor, op NativeOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dev, ok := se.registry.Lookup(desc.Path)
	if !ok {
		return fmt.Errorf("demo device %s is not registered", desc.Path)
	}

	if !se.Supports(desc, op) {
		return fmt.Errorf("device %s does not support %s", desc.Path, op)
	}

	switch op {
	case OpCryptoErase, OpNVMeFormat:
		dev.destroyKey()
		// После уничтожения ключа содержимое неотличимо от шума
		dev.zeroData()
		return nil
	case OpSanitize:
		dev.zeroData()
		return nil
	default:
		return fmt.Errorf("unknown native op: %s", op)
	}
}
