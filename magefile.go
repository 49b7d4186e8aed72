// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

//go:build mage

package main

import (
	"bytes"
	"fmt"

	"github.com/princjef/mageutil/bintool"
	"github.com/princjef/mageutil/shellcmd"
)

var (
	golines = bintool.Must(bintool.NewGo(
		"github.com/segmentio/golines",
		"v0.12.2",
	))
	linter = bintool.Must(bintool.New(
		"golangci-lint{{.BinExt}}",
		"1.61.0",
		"https://github.com/golangci/golangci-lint/releases/download/v{{.Version}}/golangci-lint-{{.Version}}-{{.GOOS}}-{{.GOARCH}}{{.ArchiveExt}}",
	))
)

// Format formats the code.
func Format() error {
	if err := golines.Ensure(); err != nil {
		return err
	}

	return golines.Command(`-m 80 --no-reformat-tags -w ./cmd ./config ./fleet ./httpapi ./internal ./location ./metrics ./mqtt ./payload ./reading ./recorder ./sensor`).Run()
}

// Lint lints the code.
func Lint() error {
	if err := linter.Ensure(); err != nil {
		return err
	}

	return linter.Command(`run`).Run()
}

// Test runs the unit tests, including the in-process broker tests.
func Test() error {
	return shellcmd.Command(`go test -race -cover -timeout 60s ./...`).Run()
}

// TestShort runs the unit tests without the in-process broker.
func TestShort() error {
	return shellcmd.Command(`go test -short -race -timeout 30s ./...`).Run()
}

// Integration runs the MQTT 3.1.1 and 5 transports against the in-process
// broker only.
func Integration() error {
	return shellcmd.Command(
		`go test -race -count 1 -run TestWithMochi ./mqtt`,
	).Run()
}

// Cover writes an HTML coverage report to ./bin/coverage.html.
func Cover() error {
	if err := shellcmd.Command(
		`go test -short -coverprofile ./bin/coverage.out ./...`,
	).Run(); err != nil {
		return err
	}
	return shellcmd.Command(
		`go tool cover -html ./bin/coverage.out -o ./bin/coverage.html`,
	).Run()
}

// Run starts the fleet with every sensor active. Set MONITORIZAPT_BROKER_URL
// to use another broker.
func Run() error {
	return shellcmd.Command(
		`go run ./cmd/sensorfleet --activate --log-level debug`,
	).Run()
}

// Build compiles the sensorfleet binary into ./bin.
func Build() error {
	return shellcmd.Command(
		`go build -o ./bin/sensorfleet ./cmd/sensorfleet`,
	).Run()
}

// CI runs format, lint, test and build.
func CI() error {
	if err := Format(); err != nil {
		return err
	}

	if err := Lint(); err != nil {
		return err
	}

	if err := Test(); err != nil {
		return err
	}

	return Build()
}

// CIVerify runs CI and verifies no thrashing occurred.
func CIVerify() error {
	if err := CI(); err != nil {
		return err
	}

	modified, err := shellcmd.Command(`git ls-files -mz`).Output()
	if err != nil {
		return err
	}
	if len(modified) > 0 {
		files := bytes.Split(modified, []byte{0})
		return fmt.Errorf(
			`found modified files - %s`,
			bytes.Join(files[:len(files)-1], []byte(", ")),
		)
	}
	return nil
}
