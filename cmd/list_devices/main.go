package main

import (
	"fmt"
	"log"

	kinect "github.com/kevmo314/go-kinect"
	usb "github.com/kevmo314/go-usb"
)

func main() {
	fmt.Println("Listing USB devices...")

	devices, err := usb.DeviceList()
	if err != nil {
		log.Fatalf("Failed to list devices: %v", err)
	}

	if len(devices) == 0 {
		fmt.Println("No USB devices found")
		fmt.Println("\nNote: usbfs access under /dev/bus/usb usually needs a udev rule")
		fmt.Printf("for vendor %04x or root privileges.\n", kinect.VendorID)
		return
	}

	cameras, motors := 0, 0
	for i, dev := range devices {
		role := ""
		if dev.Descriptor.VendorID == kinect.VendorID {
			switch dev.Descriptor.ProductID {
			case kinect.CameraProductID:
				role = "camera"
				cameras++
			case kinect.MotorProductID:
				role = "motor"
				motors++
			}
		}

		fmt.Printf("Device %d:\n", i+1)
		fmt.Printf("  Path: %s\n", dev.Path)
		fmt.Printf("  VID:PID: %04x:%04x\n", dev.Descriptor.VendorID, dev.Descriptor.ProductID)
		fmt.Printf("  USB Version: %d.%02d\n", dev.Descriptor.USBVersion>>8, dev.Descriptor.USBVersion&0xFF)
		if dev.SysfsStrings != nil && dev.SysfsStrings.Product != "" {
			fmt.Printf("  Product: %s\n", dev.SysfsStrings.Product)
		}
		if role == "" {
			fmt.Println()
			continue
		}
		fmt.Printf("  ** Kinect %s **\n", role)

		handle, err := dev.Open()
		if err != nil {
			fmt.Printf("  (Could not open: %v)\n", err)
			fmt.Println()
			continue
		}
		config, err := handle.GetActiveConfigDescriptor()
		if err == nil {
			fmt.Printf("  Active Config: %d, Interfaces: %d\n", config.ConfigurationValue, config.NumInterfaces)
			for _, iface := range config.Interfaces {
				for _, alt := range iface.AltSettings {
					// The camera streams from a vendor class interface.
					fmt.Printf("    Interface %d: class 0x%02x\n", alt.InterfaceNumber, alt.InterfaceClass)
				}
			}
		}
		handle.Close()
		fmt.Println()
	}

	fmt.Printf("Found %d device(s), %d Kinect camera(s), %d Kinect motor(s)\n", len(devices), cameras, motors)
}
