//go:build rp2040

package main

import (
	"image/color"
	"machine"

	"tinygo.org/x/drivers/ssd1306"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// statusPanel drives the on-board LED and, when one answers on I2C0, a
// 128x32 SSD1306 showing capture progress.
type statusPanel struct {
	led     machine.Pin
	display *ssd1306.Device

	lastCount, lastLimit uint32
	drawn                bool
}

func newStatusPanel(led machine.Pin, bus *machine.I2C) *statusPanel {
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p := &statusPanel{led: led}
	if bus == nil {
		return p
	}

	err := bus.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.GP4,
		SCL:       machine.GP5,
	})
	if err != nil {
		return p
	}
	// No panel fitted: the probe write fails and the LED works alone.
	if err := bus.Tx(0x3C, []byte{0x00}, nil); err != nil {
		return p
	}

	dev := ssd1306.NewI2C(bus)
	dev.Configure(ssd1306.Config{Width: 128, Height: 32, Address: 0x3C})
	dev.ClearDisplay()
	p.display = &dev
	return p
}

// SetLED turns the activity LED on or off.
func (p *statusPanel) SetLED(on bool) {
	p.led.Set(on)
}

// ShowProgress redraws the panel when the counters change.
func (p *statusPanel) ShowProgress(count, limit uint32) {
	if p.display == nil {
		return
	}
	if p.drawn && count == p.lastCount && limit == p.lastLimit {
		return
	}
	p.lastCount, p.lastLimit, p.drawn = count, limit, true

	p.display.ClearBuffer()
	tinyfont.WriteLine(p.display, &proggy.TinySZ8pt7b, 0, 10, "trigdaq", white)
	tinyfont.WriteLine(p.display, &proggy.TinySZ8pt7b, 0, 22, itoa(int(count))+" / "+itoa(int(limit)), white)

	// Progress bar along the bottom row.
	if limit > 0 {
		w := int16(uint32(128) * count / limit)
		for x := int16(0); x < w; x++ {
			p.display.SetPixel(x, 30, white)
			p.display.SetPixel(x, 31, white)
		}
	}
	p.display.Display()
}

// itoa formats the panel counters.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}

	negative := i < 0
	if negative {
		i = -i
	}

	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}

	if negative {
		pos--
		buf[pos] = '-'
	}

	return string(buf[pos:])
}
