package sensor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Reader reads the local temperature sensor.
type Reader interface {
	// Read returns the current temperature in °F.
	Read() (float64, error)

	// Close releases sensor resources.
	Close() error
}

// DefaultW1Root is where the kernel exposes 1-Wire slaves.
const DefaultW1Root = "/sys/bus/w1/devices"

// W1Reader reads a DS18B20 through the kernel w1_therm driver.
type W1Reader struct {
	path string
}

// NewW1Reader opens the DS18B20 with the given id ("28-..."). An empty id
// picks the first 28-family device under root.
func NewW1Reader(root, id string) (*W1Reader, error) {
	if id == "" {
		matches, err := filepath.Glob(filepath.Join(root, "28-*"))
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no DS18B20 under %s", root)
		}
		id = filepath.Base(matches[0])
	}
	path := filepath.Join(root, id, "w1_slave")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open sensor %s: %w", id, err)
	}
	return &W1Reader{path: path}, nil
}

// Read returns the temperature in °F.
func (r *W1Reader) Read() (float64, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", r.path, err)
	}
	c, err := parseW1Slave(string(data))
	if err != nil {
		return 0, err
	}
	return CelsiusToFahrenheit(c), nil
}

// Close is a no-op; the sysfs file is opened per read.
func (r *W1Reader) Close() error {
	return nil
}

var errCRC = errors.New("w1: crc check failed")

// parseW1Slave decodes w1_slave output:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(s string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("w1: short output %q", s)
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, errCRC
	}
	i := strings.LastIndex(lines[1], "t=")
	if i < 0 {
		return 0, fmt.Errorf("w1: no temperature in %q", lines[1])
	}
	milli, err := strconv.Atoi(strings.TrimSpace(lines[1][i+2:]))
	if err != nil {
		return 0, fmt.Errorf("w1: parse temperature: %w", err)
	}
	return float64(milli) / 1000, nil
}

// CelsiusToFahrenheit converts °C to °F.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FahrenheitToCelsius converts °F to °C.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}
