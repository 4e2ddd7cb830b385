package flash

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Board profile keys.
const (
	KeyMCU         = "build.mcu"
	KeyProtocol    = "upload.protocol"
	KeySpeed       = "upload.speed"
	KeyMaximumSize = "upload.maximum_size"
	KeyTouch1200   = "upload.use_1200bps_touch"
)

// BoardsFile is the location of the board descriptions under an Arduino home.
const BoardsFile = "hardware/arduino/boards.txt"

// TouchBoard is the board always reset by the 1200 bps touch.
const TouchBoard = "leonardo"

// Profile is the set of properties of one board from a boards file.
type Profile struct {
	Board string
	Props map[string]string
}

// Get returns a property.
func (p Profile) Get(key string) (string, bool) {
	val, ok := p.Props[key]
	return val, ok
}

// Upload is the resolved upload configuration of a board.
type Upload struct {
	MCU       string
	Protocol  string
	Speed     int
	MaxSize   int
	Touch1200 bool
}

// Upload resolves the upload configuration. A missing or malformed property
// results in a ConfigError.
func (p Profile) Upload() (Upload, error) {
	var u Upload
	var err error
	if u.MCU, err = p.require(KeyMCU); err != nil {
		return u, err
	}
	if u.Protocol, err = p.require(KeyProtocol); err != nil {
		return u, err
	}
	if u.Speed, err = p.requireInt(KeySpeed); err != nil {
		return u, err
	}
	if u.MaxSize, err = p.requireInt(KeyMaximumSize); err != nil {
		return u, err
	}
	touch, _ := p.Get(KeyTouch1200)
	u.Touch1200 = touch == "true" || p.Board == TouchBoard
	return u, nil
}

func (p Profile) require(key string) (string, error) {
	val, ok := p.Get(key)
	if !ok || val == "" {
		return "", &ConfigError{Board: p.Board, Key: key, Err: ErrMissingKey}
	}
	return val, nil
}

func (p Profile) requireInt(key string) (int, error) {
	val, err := p.require(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return 0, &ConfigError{Board: p.Board, Key: key, Err: fmt.Errorf("invalid number %q", val)}
	}
	return n, nil
}

// ParseBoards reads the properties of board from boards file content.
// Lines look like <board>.<key>=<value>; comments start with '#'.
func ParseBoards(r io.Reader, board string) (Profile, error) {
	p := Profile{Board: board, Props: make(map[string]string)}
	prefix := board + "."
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || !strings.HasPrefix(line, prefix) {
			continue
		}
		pos := strings.IndexByte(line, '=')
		if pos < 0 {
			continue
		}
		p.Props[line[len(prefix):pos]] = strings.TrimSpace(line[pos+1:])
	}
	if err := scanner.Err(); err != nil {
		return p, err
	}
	if len(p.Props) == 0 {
		return p, &ConfigError{Board: board, Err: ErrUnknownBoard}
	}
	return p, nil
}

// LoadBoards reads the profile of board from the boards file under arduinoHome.
func LoadBoards(arduinoHome, board string) (Profile, error) {
	fn := filepath.Join(arduinoHome, BoardsFile)
	f, err := os.Open(fn)
	if err != nil {
		return Profile{Board: board}, &ConfigError{Board: board, Err: err}
	}
	defer f.Close()
	return ParseBoards(f, board)
}
