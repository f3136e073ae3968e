package sensor

import (
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/dewheater/internal/gpio"
	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

const (
	// dht22MinInterval is the sensor's minimum sampling period.
	dht22MinInterval = 2 * time.Second
	// dht22StartLow is how long the host holds the line low to wake the sensor.
	dht22StartLow = 1100 * time.Microsecond
	// dht22ReadWindow bounds the whole 41-pulse response.
	dht22ReadWindow = 10 * time.Millisecond
	// dht22OneThreshold separates a 0 bit (~27µs high) from a 1 bit (~70µs high).
	dht22OneThreshold = 48 * time.Microsecond
)

var hostInit sync.Once
var hostInitErr error

// DHT22 bit-bangs an AM2302/DHT22 over a periph.io GPIO pin.
type DHT22 struct {
	pin      pgpio.PinIO
	name     string
	lastRead time.Time
	closed   bool
}

// NewDHT22 initialises the periph host drivers and opens the sensor pin.
func NewDHT22(p gpio.BoardPin) (*DHT22, error) {
	hostInit.Do(func() {
		_, hostInitErr = host.Init()
	})
	if hostInitErr != nil {
		return nil, fmt.Errorf("periph host init: %w", hostInitErr)
	}

	pin := gpioreg.ByName(p.Name)
	if pin == nil {
		return nil, fmt.Errorf("dht22: pin %s not found", p.Name)
	}
	if err := pin.In(pgpio.PullUp, pgpio.NoEdge); err != nil {
		return nil, fmt.Errorf("dht22: configure %s: %w", p.Name, err)
	}
	return &DHT22{pin: pin, name: p.Name}, nil
}

// Sample performs one blocking read. It waits out the sensor's minimum
// sampling interval if called too soon.
func (d *DHT22) Sample() (Reading, error) {
	if d.closed {
		return Reading{}, ErrClosed
	}
	if wait := dht22MinInterval - time.Since(d.lastRead); wait > 0 {
		time.Sleep(wait)
	}
	defer func() { d.lastRead = time.Now() }()

	if err := d.pin.Out(pgpio.Low); err != nil {
		return Reading{}, fmt.Errorf("dht22 %s: start signal: %w", d.name, err)
	}
	time.Sleep(dht22StartLow)
	if err := d.pin.In(pgpio.PullUp, pgpio.NoEdge); err != nil {
		return Reading{}, fmt.Errorf("dht22 %s: release line: %w", d.name, err)
	}

	return decodeDHT22(d.capture())
}

// capture busy-polls the line and returns the length of every high pulse.
func (d *DHT22) capture() []time.Duration {
	pulses := make([]time.Duration, 0, 42)
	deadline := time.Now().Add(dht22ReadWindow)

	level := d.pin.Read()
	var highSince time.Time
	if level == pgpio.High {
		highSince = time.Now()
	}
	for now := time.Now(); now.Before(deadline) && len(pulses) < cap(pulses); now = time.Now() {
		l := d.pin.Read()
		if l == level {
			continue
		}
		if l == pgpio.High {
			highSince = now
		} else if !highSince.IsZero() {
			pulses = append(pulses, now.Sub(highSince))
		}
		level = l
	}
	return pulses
}

// Close releases the pin.
func (d *DHT22) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.pin.Halt()
}

// decodeDHT22 turns the captured high pulses into a Reading. Only the last
// 40 pulses carry data; earlier ones are the idle line and the sensor's
// 80µs response.
func decodeDHT22(pulses []time.Duration) (Reading, error) {
	if len(pulses) == 0 {
		return Reading{}, ErrTimeout
	}
	if len(pulses) < 40 {
		return Reading{}, fmt.Errorf("%w: %d of 40 bits", ErrShortFrame, len(pulses))
	}
	bits := pulses[len(pulses)-40:]

	var data [5]byte
	for i, p := range bits {
		data[i/8] <<= 1
		if p > dht22OneThreshold {
			data[i/8] |= 1
		}
	}

	sum := data[0] + data[1] + data[2] + data[3]
	if sum != data[4] {
		return Reading{}, fmt.Errorf("%w: got %#02x, want %#02x", ErrChecksum, data[4], sum)
	}

	humidity := float64(uint16(data[0])<<8|uint16(data[1])) / 10
	temperature := float64(uint16(data[2]&0x7f)<<8|uint16(data[3])) / 10
	if data[2]&0x80 != 0 {
		temperature = -temperature
	}

	r := Reading{Temperature: temperature, Humidity: humidity}
	if temperature < -40 || temperature > 80 {
		return Reading{}, fmt.Errorf("%w: temperature %v", ErrOutOfRange, temperature)
	}
	if err := r.Validate(); err != nil {
		return Reading{}, err
	}
	return r, nil
}
