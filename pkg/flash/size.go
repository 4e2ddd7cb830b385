package flash

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/marcinbor85/gohex"
)

// ParseSizeOutput extracts the data column from avr-size output:
//
//	   text    data     bss     dec     hex filename
//	      0   26524       0   26524    679c firmware.hex
func ParseSizeOutput(out []byte) (int, error) {
	fields := strings.Fields(string(out))
	if len(fields) < 8 {
		return 0, fmt.Errorf("unexpected size output: %q", out)
	}
	size, err := strconv.Atoi(fields[7])
	if err != nil {
		return 0, fmt.Errorf("unexpected size output: %q", out)
	}
	return size, nil
}

// HexImageSize returns the number of data bytes in an Intel HEX file.
func HexImageSize(fn string) (int, error) {
	f, err := os.Open(fn)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	mem := gohex.NewMemory()
	if err = mem.ParseIntelHex(f); err != nil {
		return 0, fmt.Errorf("parse %s: %w", fn, err)
	}
	var size int
	for _, seg := range mem.GetDataSegments() {
		size += len(seg.Data)
	}
	return size, nil
}
