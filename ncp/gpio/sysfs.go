package gpio

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// SysfsHook is a Hook implementation driving two Linux sysfs GPIO lines
// directly -- one for reset, one for boot-mode select. It is deliberately
// the thinnest possible real implementation: no edge detection, no
// interrupt handling, just the two sustained output lines the reset
// sequence needs (spec §4.10). Platforms with a richer GPIO story should
// implement Hook themselves rather than extend this one.
type SysfsHook struct {
	resetPath string
	bootPath  string
}

// OpenLineHook exports resetLine and bootLine (if non-zero) via sysfs and
// returns a Hook driving them. A zero line number leaves that half of the
// hook a no-op, for boards that tie boot-mode select to a strap rather
// than a GPIO the host can drive.
func OpenLineHook(resetLine, bootLine uint) (*SysfsHook, error) {
	h := &SysfsHook{}
	var err error
	if resetLine != 0 {
		if h.resetPath, err = exportLine(resetLine); err != nil {
			return nil, errors.Wrapf(err, "export reset line %d", resetLine)
		}
	}
	if bootLine != 0 {
		if h.bootPath, err = exportLine(bootLine); err != nil {
			return nil, errors.Wrapf(err, "export boot-mode line %d", bootLine)
		}
	}
	return h, nil
}

func exportLine(line uint) (string, error) {
	path := fmt.Sprintf("/sys/class/gpio/gpio%d", line)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if werr := os.WriteFile("/sys/class/gpio/export", []byte(fmt.Sprintf("%d", line)), 0o200); werr != nil {
			return "", werr
		}
	}
	if err := os.WriteFile(path+"/direction", []byte("out"), 0o200); err != nil {
		return "", err
	}
	return path, nil
}

func (h *SysfsHook) SetReset(asserted bool) {
	writeValue(h.resetPath, asserted)
}

func (h *SysfsHook) SetBootloaderMode(enabled bool) {
	writeValue(h.bootPath, enabled)
}

func writeValue(path string, high bool) {
	if path == "" {
		return
	}
	v := []byte("0")
	if high {
		v = []byte("1")
	}
	_ = os.WriteFile(path+"/value", v, 0o200)
}
