// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdttest

// Phandles in the Pi5 sample.
const (
	GicPhandle   = 1
	ClockPhandle = 2
	GpioPhandle  = 3
)

// Pi5 returns a blob shaped like a trimmed Raspberry Pi 5 tree:
//
//	/ compatible = "raspberrypi,5-model-b", "brcm,bcm2712"
//	  aliases, chosen, memory@0, reserved-memory/atf@0, cpus/cpu@0,
//	  clk-uart (fixed-clock), timer, leds/act,
//	  soc (simple-bus, 0x7c000000 -> 0x10_7c000000)
//	    interrupt-controller@7fff9000, serial@7d001000,
//	    gpio@7d508500 (with pin descriptions), watchdog@7d200000 (disabled)
func Pi5() []byte {
	b := New()
	b.Reserve(0x3b400000, 0x4c00000)

	b.Begin("")
	b.Strings("compatible", "raspberrypi,5-model-b", "brcm,bcm2712")
	b.Strings("model", "Raspberry Pi 5 Model B Rev 1.0")
	b.Cells("#address-cells", 2)
	b.Cells("#size-cells", 2)
	b.Cells("interrupt-parent", GicPhandle)

	b.Begin("aliases")
	b.Strings("serial0", "/soc/serial@7d001000")
	b.Strings("gpio0", "/soc/gpio@7d508500")
	b.End()

	b.Begin("chosen")
	b.Strings("bootargs", "console=ttyAMA0,115200 root=/dev/mmcblk0p2")
	b.Strings("stdout-path", "serial0:115200n8")
	b.End()

	b.Begin("memory@0")
	b.Strings("device_type", "memory")
	b.Cells("reg", 0x0, 0x0, 0x1, 0x0)
	b.End()

	b.Begin("reserved-memory")
	b.Cells("#address-cells", 2)
	b.Cells("#size-cells", 2)
	b.Empty("ranges")
	b.Begin("atf@0")
	b.Cells("reg", 0x0, 0x0, 0x0, 0x80000)
	b.Empty("no-map")
	b.End()
	b.End()

	b.Begin("cpus")
	b.Cells("#address-cells", 1)
	b.Cells("#size-cells", 0)
	b.Begin("cpu@0")
	b.Strings("device_type", "cpu")
	b.Strings("compatible", "arm,cortex-a76")
	b.Cells("reg", 0)
	b.Strings("enable-method", "psci")
	b.End()
	b.End()

	b.Begin("clk-uart")
	b.Strings("compatible", "fixed-clock")
	b.Cells("#clock-cells", 0)
	b.Cells("clock-frequency", 48000000)
	b.Cells("phandle", ClockPhandle)
	b.End()

	b.Begin("timer")
	b.Strings("compatible", "arm,armv8-timer")
	b.Cells("interrupts",
		1, 13, 0xf08,
		1, 14, 0xf08,
		1, 11, 0xf08,
		1, 10, 0xf08)
	b.End()

	b.Begin("leds")
	b.Strings("compatible", "gpio-leds")
	b.Begin("led-act")
	b.Strings("label", "ACT")
	b.Cells("gpios", GpioPhandle, 9, 1)
	b.End()
	b.End()

	b.Begin("soc")
	b.Strings("compatible", "simple-bus")
	b.Cells("#address-cells", 1)
	b.Cells("#size-cells", 1)
	b.Cells("ranges", 0x7c000000, 0x10, 0x7c000000, 0x04000000)

	b.Begin("interrupt-controller@7fff9000")
	b.Strings("compatible", "arm,gic-400")
	b.Empty("interrupt-controller")
	b.Cells("#interrupt-cells", 3)
	b.Cells("reg",
		0x7fff9000, 0x1000,
		0x7fffa000, 0x2000)
	b.Cells("phandle", GicPhandle)
	b.End()

	b.Begin("serial@7d001000")
	b.Strings("compatible", "arm,pl011", "arm,primecell")
	b.Cells("reg", 0x7d001000, 0x200)
	b.Cells("interrupts", 0, 121, 4)
	b.Cells("clocks", ClockPhandle)
	b.Strings("clock-names", "uartclk")
	b.Strings("status", "okay")
	b.End()

	b.Begin("gpio@7d508500")
	b.Strings("compatible", "brcm,bcm7445-gpio", "brcm,brcmstb-gpio")
	b.Cells("reg", 0x7d508500, 0x40)
	b.Empty("gpio-controller")
	b.Cells("#gpio-cells", 2)
	b.Cells("phandle", GpioPhandle)
	b.Begin("led_act@9")
	b.Empty("gpio-pin-desc")
	b.Empty("output-low")
	b.End()
	b.Begin("button@4")
	b.Empty("gpio-pin-desc")
	b.Empty("input")
	b.End()
	b.End()

	b.Begin("watchdog@7d200000")
	b.Strings("compatible", "brcm,bcm2712-pm", "brcm,bcm2835-pm-wdt")
	b.Cells("reg", 0x7d200000, 0x604)
	b.Strings("status", "disabled")
	b.End()

	b.End() // soc
	b.End() // root
	return b.Build()
}
