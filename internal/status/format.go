package status

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LogLine formats s as the data log message:
// temp_in dewpoint_in humidity_in temp_ext dewpoint_ext humidity_ext heater_on
// with both dew points at two decimals.
func LogLine(s Snapshot) string {
	return fmt.Sprintf("%s %.2f %s %s %.2f %s %s",
		num(s.TempIn), s.DewPointIn, num(s.HumidityIn),
		num(s.TempExt), s.DewPointExt, num(s.HumidityExt),
		flag(s.HeaterOn))
}

// StatusText formats s as the fixed 7-line status file block.
func StatusText(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Temperature inside:   %s C\n", num(s.TempIn))
	fmt.Fprintf(&b, "Dew point inside:     %.2f C\n", s.DewPointIn)
	fmt.Fprintf(&b, "Humidity inside:      %s %%\n", num(s.HumidityIn))
	fmt.Fprintf(&b, "Temperature outside:  %s C\n", num(s.TempExt))
	fmt.Fprintf(&b, "Dew point outside:    %.2f C\n", s.DewPointExt)
	fmt.Fprintf(&b, "Humidity outside:     %s %%\n", num(s.HumidityExt))
	fmt.Fprintf(&b, "Heater:               %s\n", onOff(s.HeaterOn))
	return b.String()
}

// WriteStatusFile replaces path with the status block for s. The file is
// written next to path and renamed so readers never see a partial block.
func WriteStatusFile(path string, s Snapshot) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create status temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(StatusText(s)); err != nil {
		tmp.Close()
		return fmt.Errorf("write status file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close status file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace status file: %w", err)
	}
	return nil
}

// num prints a reading in its shortest exact form. Whole numbers carry no
// fractional part.
func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func flag(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
