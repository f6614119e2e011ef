package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// askProductCount asks until the operator enters a positive integer.
func askProductCount(in *bufio.Reader, out io.Writer) (int, error) {
	for {
		fmt.Fprint(out, "How many products should be generated? ")
		line, err := in.ReadString('\n')
		if text := strings.TrimSpace(line); text != "" {
			if n, convErr := strconv.Atoi(text); convErr == nil && n > 0 {
				return n, nil
			}
			fmt.Fprintln(out, "Please enter a positive integer.")
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, errors.New("no product count given before end of input")
			}
			return 0, fmt.Errorf("read product count: %w", err)
		}
	}
}
