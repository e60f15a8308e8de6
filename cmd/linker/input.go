package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/siherrmann/linker/helper"
)

// readJSONLines decodes one value per non-empty line of the file at path.
func readJSONLines[T any](path string) ([]*T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, helper.NewError("open", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var values []*T
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		value := new(T)
		if err := json.Unmarshal(scanner.Bytes(), value); err != nil {
			return nil, helper.NewDataIntegrityError(fmt.Sprintf("malformed record: %v", err), fmt.Sprintf("%s:%d", path, line))
		}
		values = append(values, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, helper.NewError("read", err)
	}
	return values, nil
}

// createOutput opens path for writing, "-" or "" selects stdout.
func createOutput(path string) (*os.File, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, helper.NewError("create output", err)
	}
	return f, f.Close, nil
}
