// Package flash writes firmware images with an external programmer.
package flash

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/reflash/pkg/link"
)

// Tool names.
const (
	ProgrammerTool = "avrdude"
	SizeTool       = "avr-size"
)

// DefaultTouchDelay is the time given to the bootloader after the 1200 bps touch.
const DefaultTouchDelay = time.Second

var errorText = regexp.MustCompile(`(?i)\berror\b`)

// Flasher uploads images to the board on Port.
type Flasher struct {
	Port    string
	Profile Profile

	// ProgrammerPath is the programmer executable, ProgrammerConf its config file.
	ProgrammerPath string
	ProgrammerConf string
	// SizeToolPath is the avr-size executable, avr-size from PATH by
	// default. When empty the image size is computed from the hex file.
	SizeToolPath string

	Runner     CommandRunner
	Touch      func(port string, baud int) error
	TouchDelay time.Duration
}

// Result describes a completed upload.
type Result struct {
	ImageSize int
	MaxSize   int
	Output    string
}

// New creates a Flasher with the default runner and reset pulse.
func New(port string, profile Profile) *Flasher {
	return &Flasher{
		Port:           port,
		Profile:        profile,
		ProgrammerPath: ProgrammerTool,
		SizeToolPath:   SizeTool,
		Runner:         ExecRunner{},
		Touch:          link.Touch,
		TouchDelay:     DefaultTouchDelay,
	}
}

// ImageSize measures the image in hexFile.
func (f *Flasher) ImageSize(hexFile string) (int, error) {
	if f.SizeToolPath == "" {
		return HexImageSize(hexFile)
	}
	glog.Infof("%s %s", f.SizeToolPath, hexFile)
	out, err := f.Runner.Run("", f.SizeToolPath, []string{hexFile})
	if err != nil {
		glog.Errorf("%s: %s", f.SizeToolPath, out)
		return 0, err
	}
	return ParseSizeOutput(out)
}

// ProgrammerArgs builds the programmer arguments. The image is referred to by
// its base name as the programmer runs in the directory of the image.
func (f *Flasher) ProgrammerArgs(u Upload, hexFile string) []string {
	args := []string{
		"-F",
		"-p", u.MCU,
		"-c", u.Protocol,
		"-b", strconv.Itoa(u.Speed),
		"-P", f.Port,
		"-U", "flash:w:" + filepath.Base(hexFile),
	}
	if f.ProgrammerConf != "" {
		args = append(args, "-C", f.ProgrammerConf)
	}
	return args
}

// Flash checks the image size and runs the programmer. The serial port must
// not be open. ctx is only checked before the programmer starts: an upload
// in progress is never interrupted.
func (f *Flasher) Flash(ctx context.Context, hexFile string) (*Result, error) {
	u, err := f.Profile.Upload()
	if err != nil {
		return nil, err
	}
	size, err := f.ImageSize(hexFile)
	if err != nil {
		return nil, err
	}
	glog.Infof("program size: %d bytes out of max %d", size, u.MaxSize)
	if size > u.MaxSize {
		return nil, &ImageTooLargeError{Size: size, MaxSize: u.MaxSize}
	}
	res := &Result{ImageSize: size, MaxSize: u.MaxSize}

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	if u.Touch1200 && f.Touch != nil {
		glog.Infof("resetting %s with %d bps touch", f.Port, link.TouchBaud)
		if err = f.Touch(f.Port, link.TouchBaud); err != nil {
			return nil, err
		}
		time.Sleep(f.TouchDelay)
	}

	args := f.ProgrammerArgs(u, hexFile)
	glog.Infof("programming with %s %v", f.ProgrammerPath, args)
	out, err := f.Runner.Run(filepath.Dir(hexFile), f.ProgrammerPath, args)
	res.Output = string(out)
	glog.Infof("result of %s:\n%s", f.ProgrammerPath, out)
	if err != nil {
		return res, &FlashFailedError{Output: res.Output, Err: err}
	}
	if errorText.Match(out) {
		return res, &FlashFailedError{Output: res.Output}
	}
	return res, nil
}
