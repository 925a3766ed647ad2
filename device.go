package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"vox/audio"
)

// selectDevice prints the capture devices as a numbered list and reads the
// user's pick. Runs before the TUI owns the terminal.
func selectDevice(ctx audio.Context) (*audio.DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}
	if len(devices) == 1 {
		fmt.Printf("Using device: %s\n", devices[0].Name)
		return &devices[0], nil
	}

	fmt.Println("Select input device:")
	fmt.Println("  0) system default")
	for i, d := range devices {
		fmt.Printf("  %d) %s\n", i+1, d.Name)
	}
	fmt.Print("> ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 0 || n > len(devices) {
		return nil, fmt.Errorf("invalid selection %q", strings.TrimSpace(line))
	}
	if n == 0 {
		return nil, nil
	}
	return &devices[n-1], nil
}
