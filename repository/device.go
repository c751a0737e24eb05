package repository

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlabs/lumen/domain/entities"
)

// ErrDeviceNotFound reports unknown or mismatched device credentials.
var ErrDeviceNotFound = errors.New("device not found")

// DeviceRepository validates device credentials for token issuance.
type DeviceRepository interface {
	ValidateDevice(serialNumber, secretKey string) (*entities.Device, error)
	GetByID(id string) (*entities.Device, error)
}

// MemoryDeviceRepository keeps registered devices in memory. Deployments
// register their fleet at startup from configuration.
type MemoryDeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]*entities.Device
	secrets map[string]string
}

// NewMemoryDeviceRepository returns an empty registry.
func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{
		devices: make(map[string]*entities.Device),
		secrets: make(map[string]string),
	}
}

// Register adds a device keyed by serial number.
func (m *MemoryDeviceRepository) Register(serialNumber, secretKey, model string) *entities.Device {
	m.mu.Lock()
	defer m.mu.Unlock()

	device := &entities.Device{
		ID:           uuid.NewString(),
		SerialNumber: serialNumber,
		Model:        model,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.devices[device.ID] = device
	m.secrets[serialNumber] = secretKey
	return device
}

// ValidateDevice checks the serial number and secret pair.
func (m *MemoryDeviceRepository) ValidateDevice(serialNumber, secretKey string) (*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.secrets[serialNumber]
	if !ok || stored != secretKey {
		return nil, ErrDeviceNotFound
	}
	for _, device := range m.devices {
		if device.SerialNumber == serialNumber {
			return device, nil
		}
	}
	return nil, ErrDeviceNotFound
}

// GetByID looks a device up by its generated id.
func (m *MemoryDeviceRepository) GetByID(id string) (*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	device, ok := m.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return device, nil
}
