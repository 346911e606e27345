// cmd/preflight/main.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	pub := strings.TrimSpace(os.Getenv("PUBLIC_API_KEYS"))
	apiAddr := strings.TrimSpace(os.Getenv("API_ADDR"))
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	targetsFile := strings.TrimSpace(os.Getenv("TARGETS_FILE"))
	slack := strings.TrimSpace(os.Getenv("SLACK_WEBHOOK_URL"))

	if admin == "" {
		fail("ADMIN_API_KEYS is empty (mutation routes will 403).")
	}
	if pub == "" {
		fail("PUBLIC_API_KEYS is empty (read routes will 401).")
	}

	// Normalize and sanity-check lists (no spaces around commas).
	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if apiAddr == "" {
		warn("API_ADDR is empty; the app defaults to 127.0.0.1:8080.")
	} else {
		ok("API_ADDR=" + apiAddr)
	}

	switch db {
	case "":
		fail("DATABASE_URL empty — every data route will answer 500 server not configured.")
	case "memory":
		warn("DATABASE_URL=memory — in-process store, data lost on restart.")
	default:
		ok("DATABASE_URL present")
	}

	if targetsFile == "" {
		targetsFile = "targets.json"
	}
	raw, err := os.ReadFile(targetsFile)
	if err != nil {
		warn("cannot read targets file " + targetsFile + " — probe sweeps will be disabled.")
	} else {
		var targets []json.RawMessage
		if err := json.Unmarshal(raw, &targets); err != nil {
			fail(targetsFile + " is not a JSON array of targets: " + err.Error())
		}
		ok(fmt.Sprintf("%s: %d target(s)", targetsFile, len(targets)))
	}

	if slack == "" {
		warn("SLACK_WEBHOOK_URL empty — incident notifications disabled.")
	} else {
		ok("SLACK_WEBHOOK_URL present")
	}

	ok("preflight passed")
}
