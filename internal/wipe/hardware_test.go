package wipe

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"zerotrace/internal/device"
	"zerotrace/internal/method"
)

func TestHardwareEraserCryptoErase(t *testing.T) {
	device.Demo().Reset()
	defer device.Demo().Reset()

	sim := device.NewSimDevice("demo://nvme0", device.MediumNVMe, 1024*1024, "Test NVMe", "N-1")
	device.Demo().Register(sim)

	m, err := method.Resolve(method.CryptoErase)
	require.NoError(t, err)

	eraser := NewHardwareEraser(device.NewSimEraser(device.Demo()), zaptest.NewLogger(t))
	record, err := eraser.Run(context.Background(), sim.Descriptor(), m, Observer{})
	require.NoError(t, err)

	assert.True(t, record.KeyDestroyed)
	assert.True(t, record.DataDestroyed)
	assert.Equal(t, m.Passes, record.PassesCompleted)
	assert.True(t, sim.KeyDestroyed())
}

func TestHardwareEraserSanitize(t *testing.T) {
	device.Demo().Reset()
	defer device.Demo().Reset()

	sim := device.NewSimDevice("demo://hdd0", device.MediumHDD, 1024*1024, "Test HDD", "H-1")
	device.Demo().Register(sim)

	m, err := method.Resolve(method.ATASanitize)
	require.NoError(t, err)

	eraser := NewHardwareEraser(device.NewSimEraser(device.Demo()), zaptest.NewLogger(t))
	record, err := eraser.Run(context.Background(), sim.Descriptor(), m, Observer{})
	require.NoError(t, err)
	assert.True(t, record.DataDestroyed)

	// Содержимое затерто нулями
	target := sim.OpenTarget()
	buf := make([]byte, 4096)
	_, err = target.ReadAt(buf, 0)
	require.NoError(t, err)
	for _, b := range buf {
		require.Zero(t, b)
	}
}

func TestHardwareEraserUnsupported(t *testing.T) {
	device.Demo().Reset()
	defer device.Demo().Reset()

	// HDD не поддерживает crypto_erase
	sim := device.NewSimDevice("demo://hdd1", device.MediumHDD, 1024*1024, "Test HDD", "H-2")
	device.Demo().Register(sim)

	m, err := method.Resolve(method.CryptoErase)
	require.NoError(t, err)

	eraser := NewHardwareEraser(device.NewSimEraser(device.Demo()), zaptest.NewLogger(t))
	_, err = eraser.Run(context.Background(), sim.Descriptor(), m, Observer{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHardwareUnsupported))

	// Отказ произошел до любого деструктивного действия
	assert.False(t, sim.KeyDestroyed())
	target := sim.OpenTarget()
	buf := make([]byte, 4096)
	_, readErr := target.ReadAt(buf, 0)
	require.NoError(t, readErr)
	nonZero := false
	for _, b := range buf {
		if b != 0 {
			nonZero = true
			break
		}
	}
	assert.True(t, nonZero, "device content must be untouched")
}

func TestHardwareEraserNilNative(t *testing.T) {
	m, err := method.Resolve(method.NVMeFormat)
	require.NoError(t, err)

	eraser := NewHardwareEraser(nil, zaptest.NewLogger(t))
	_, err = eraser.Run(context.Background(), device.Descriptor{Path: "/dev/nvme9n1", SizeBytes: 1}, m, Observer{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHardwareUnsupported))
}

func TestForMethodDispatch(t *testing.T) {
	logger := zaptest.NewLogger(t)

	software, err := method.Resolve(method.ThreePass)
	require.NoError(t, err)
	assert.IsType(t, &PatternEraser{}, ForMethod(software, nil, Options{}, logger))

	hardware, err := method.Resolve(method.CryptoErase)
	require.NoError(t, err)
	assert.IsType(t, &HardwareEraser{}, ForMethod(hardware, nil, Options{}, logger))
}
