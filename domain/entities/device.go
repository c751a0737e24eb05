package entities

import (
	"errors"
	"time"
)

// Device represents one registered assistant client.
type Device struct {
	ID           string    `json:"id"`
	SerialNumber string    `json:"serial_number"`
	SecretKey    string    `json:"secret_key"`
	Model        string    `json:"model"`
	Locale       string    `json:"locale"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (d *Device) Validate() error {
	if d.SerialNumber == "" {
		return errors.New("serial number is required")
	}
	if d.SecretKey == "" {
		return errors.New("secret key is required")
	}
	return nil
}
