// go-iso7816
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-iso7816.
//
// go-iso7816 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-iso7816 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-iso7816; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	iso7816 "github.com/ZaparooProject/go-iso7816"
	"github.com/ZaparooProject/go-iso7816/contacts/gpiod"
	"github.com/ZaparooProject/go-iso7816/contacts/periph"
	"github.com/ZaparooProject/go-iso7816/detection"
	"github.com/ZaparooProject/go-iso7816/polling"
	"github.com/ZaparooProject/go-iso7816/transport/serial"
)

type config struct {
	devicePath   *string
	timeout      *time.Duration
	pollInterval *time.Duration
	gpioChip     *string
	resetPin     *string
	powerPin     *string
	expanderBus  *string
	resetLine    *int
	powerLine    *int
	detectLine   *int
	list         *bool
	debug        *bool
	readNDEF     *bool
	showFCP      *bool
	watch        *bool
	invertReset  *bool
	noPTS        *bool
}

func parseFlags() *config {
	cfg := &config{
		devicePath: flag.String("device", "",
			"Serial device path (e.g., /dev/ttyUSB0 or COM3). Leave empty for auto-detection."),
		timeout:      flag.Duration("timeout", 10*time.Second, "Overall timeout for activation and reads"),
		pollInterval: flag.Duration("poll-interval", 250*time.Millisecond, "Slot polling interval in -watch mode"),
		gpioChip:     flag.String("gpiochip", "", "Drive RST/VCC from this GPIO chip (Linux) instead of RTS/DTR"),
		resetLine:    flag.Int("reset-line", -1, "RST line offset on -gpiochip"),
		powerLine:    flag.Int("power-line", -1, "VCC line offset on -gpiochip"),
		detectLine:   flag.Int("detect-line", -1, "Card detect line offset on -gpiochip"),
		resetPin:     flag.String("reset-pin", "", "Drive RST from this periph GPIO name (e.g. GPIO17)"),
		powerPin:     flag.String("power-pin", "", "Drive VCC from this periph GPIO name (e.g. GPIO27)"),
		expanderBus:  flag.String("expander-bus", "", "Drive RST/VCC from a PCF8574 on this I2C bus (bits 0 and 1)"),
		list:         flag.Bool("list", false, "List candidate reader ports and exit"),
		debug:        flag.Bool("debug", false, "Enable debug output"),
		readNDEF:     flag.Bool("ndef", false, "Read the NDEF application instead of the ICCID"),
		showFCP:      flag.Bool("fcp", false, "Select the MF with FCP and print the template"),
		watch:        flag.Bool("watch", false, "Keep watching the slot and read every inserted card"),
		invertReset:  flag.Bool("invert-reset", false, "Reader drives RST high while RTS is asserted"),
		noPTS:        flag.Bool("no-pts", false, "Stay at the default rate even if the card offers PTS"),
	}
	flag.Parse()

	if *cfg.debug {
		iso7816.SetDebugEnabled(true)
	}
	return cfg
}

func resolveDevice(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	readers, err := detection.DetectReaders(detection.Options{USBOnly: true})
	if err != nil {
		return "", err
	}
	if len(readers) == 0 {
		return "", errors.New("no USB serial reader found, use -device")
	}
	_, _ = fmt.Printf("Using %s\n", readers[0])
	return readers[0].Path, nil
}

func listReaders() error {
	readers, err := detection.DetectReaders(detection.DefaultOptions())
	if err != nil {
		return err
	}
	if len(readers) == 0 {
		_, _ = fmt.Println("No serial ports found")
	}
	for _, r := range readers {
		_, _ = fmt.Println(r)
	}
	return nil
}

// openContacts picks RST/VCC wiring. The reader's own RTS/DTR lines are the
// default; a detector is returned when a card detect switch is configured.
func openContacts(cfg *config, line *serial.Transport) (iso7816.Contacts, polling.Detector, func(), error) {
	switch {
	case *cfg.gpioChip != "":
		c, err := gpiod.Open(gpiod.Config{
			Chip:   *cfg.gpioChip,
			Reset:  *cfg.resetLine,
			Power:  *cfg.powerLine,
			Detect: *cfg.detectLine,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		var det polling.Detector
		if *cfg.detectLine >= 0 {
			det = c
		}
		return c, det, func() { _ = c.Close() }, nil
	case *cfg.resetPin != "" || *cfg.powerPin != "":
		p, err := periph.OpenPins(*cfg.resetPin, *cfg.powerPin)
		if err != nil {
			return nil, nil, nil, err
		}
		return p, nil, func() {}, nil
	case *cfg.expanderBus != "":
		e, err := periph.OpenExpander(*cfg.expanderBus, periph.DefaultExpanderAddr, 0, 1)
		if err != nil {
			return nil, nil, nil, err
		}
		return e, nil, func() {}, nil
	default:
		return line, nil, func() {}, nil
	}
}

func readCard(card *iso7816.Card, cfg *config) error {
	if *cfg.showFCP {
		fcp, err := card.SelectFCP(0x00, 0x00, []byte{0x3F, 0x00})
		if err != nil {
			return fmt.Errorf("select MF: %w", err)
		}
		_, _ = fmt.Printf("MF: FID %04X, descriptor %02X, DF %v, %d other tags\n",
			fcp.FileID, fcp.Descriptor, fcp.IsDF(), len(fcp.Unknown))
	}

	if *cfg.readNDEF {
		msg, err := card.ReadNDEF()
		if err != nil {
			return fmt.Errorf("read NDEF: %w", err)
		}
		_, _ = fmt.Printf("NDEF: %s\n", msg)
		return nil
	}

	iccid, err := card.ReadICCID()
	if err != nil {
		return fmt.Errorf("read ICCID: %w", err)
	}
	_, _ = fmt.Printf("ICCID: %s\n", iccid)
	return nil
}

func printATR(atr *iso7816.ATR) {
	_, _ = fmt.Printf("ATR: %s\n", atr)
	if fi, di, err := atr.FiDi(); err == nil {
		_, _ = fmt.Printf("  Fi=%d Di=%d, %d historical bytes\n", fi, di, atr.HistoricalLength())
	}
}

func runOnce(ctx context.Context, card *iso7816.Card, cfg *config) error {
	atr, err := card.ActivateWithRetry(ctx)
	if err != nil {
		if errors.Is(err, iso7816.ErrCardAbsent) {
			return errors.New("no card in the reader")
		}
		return fmt.Errorf("activation failed: %w", err)
	}
	defer func() { _ = card.Deactivate() }()

	printATR(atr)
	return readCard(card, cfg)
}

func runWatch(ctx context.Context, card *iso7816.Card, det polling.Detector, cfg *config) error {
	monCfg := polling.DefaultConfig()
	monCfg.PollInterval = *cfg.pollInterval

	monitor := polling.NewMonitor(card, det, monCfg)
	monitor.OnCardInserted = func(card *iso7816.Card, atr *iso7816.ATR) error {
		printATR(atr)
		return readCard(card, cfg)
	}
	monitor.OnCardRemoved = func() {
		_, _ = fmt.Println("Card removed - waiting for next card...")
	}
	defer func() { _ = monitor.Close() }()

	_, _ = fmt.Printf("Watching slot (poll interval: %s), Ctrl-C to stop\n", *cfg.pollInterval)
	if err := monitor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func run(cfg *config) error {
	if *cfg.list {
		return listReaders()
	}

	path, err := resolveDevice(*cfg.devicePath)
	if err != nil {
		return err
	}

	var lineOpts []serial.Option
	if *cfg.invertReset {
		lineOpts = append(lineOpts, serial.WithInvertedReset())
	}
	line, err := serial.Open(path, lineOpts...)
	if err != nil {
		return err
	}
	defer func() { _ = line.Close() }()

	contacts, det, closeContacts, err := openContacts(cfg, line)
	if err != nil {
		return err
	}
	defer closeContacts()

	card, err := iso7816.New(line, contacts, iso7816.WithPTS(!*cfg.noPTS))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *cfg.watch {
		return runWatch(ctx, card, det, cfg)
	}

	ctx, cancel := context.WithTimeout(ctx, *cfg.timeout)
	defer cancel()
	return runOnce(ctx, card, cfg)
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
