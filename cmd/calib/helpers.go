package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
)

func parseFloatArg(arg string, valueName string) (float64, error) {
	value, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %v", valueName, arg, err)
	}

	return value, nil
}

func parseFloatArgs(args []string, valueName string) ([]float64, error) {
	values := make([]float64, 0, len(args))
	for _, arg := range args {
		v, err := parseFloatArg(arg, valueName)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	return values, nil
}

// readFloats reads whitespace separated values, e.g. piped readings.
func readFloats(r io.Reader, valueName string) ([]float64, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	var values []float64
	for sc.Scan() {
		v, err := parseFloatArg(sc.Text(), valueName)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read values: %v", err)
	}

	return values, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
