// The sniffer watches lobby traffic on a network device (or in a capture file)
// and prints every frame it can reassemble.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

var (
	device   = flag.String("d", "en0", "Device on which to listen for packets")
	readFile = flag.String("r", "", "Read packets from a pcap file instead of a device")
	port     = flag.Int("p", 5555, "Port the lobby listens on")
	dump     = flag.Bool("dump", false, "Print the decoded message structure instead of the raw JSON")
)

func main() {
	flag.Parse()

	var (
		handle *pcap.Handle
		err    error
	)
	if *readFile != "" {
		handle, err = pcap.OpenOffline(*readFile)
	} else {
		if getDeviceIP() == "" {
			exit("invalid device: %s", *device)
		}
		handle, err = pcap.OpenLive(*device, math.MaxInt32, false, pcap.BlockForever)
	}
	if err != nil {
		exit("error opening handle: %v", err)
	}
	defer handle.Close()

	if err := handle.SetBPFFilter(fmt.Sprintf("tcp port %d", *port)); err != nil {
		exit("error setting filter: %v", err)
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	s := newSniffer(w, uint16(*port), *dump)
	s.startReading(gopacket.NewPacketSource(handle, handle.LinkType()).Packets())
}

func exit(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}

func getDeviceIP() string {
	devs, _ := pcap.FindAllDevs()
	for _, dev := range devs {
		if dev.Name == *device {
			for _, address := range dev.Addresses {
				return address.IP.String()
			}
		}
	}
	return ""
}
