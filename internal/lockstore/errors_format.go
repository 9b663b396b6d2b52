package lockstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// formatError is the textual wire format used for every write to the
// errors: namespace: "<status>: <message>". See DESIGN.md's Open
// Questions section for why textual was chosen over a JSON envelope.
func formatError(status int, message string) string {
	return fmt.Sprintf("%d: %s", status, message)
}

// jsonErrorEnvelope is tolerated on read only, so a store seeded by an
// older or alternate writer during a rolling deploy is still legible.
// The status is read from "status", or from "status_code" when
// "status" is absent.
type jsonErrorEnvelope struct {
	Status     int    `json:"status"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

// parseError parses either wire format. An unparseable value defaults to
// status 500 with the raw value as the message.
func parseError(raw string) JobError {
	if raw == "" {
		return JobError{Status: 500, Message: ""}
	}

	var env jsonErrorEnvelope
	if strings.HasPrefix(strings.TrimSpace(raw), "{") {
		if err := json.Unmarshal([]byte(raw), &env); err == nil {
			status := env.Status
			if status == 0 {
				status = env.StatusCode
			}
			return JobError{Status: status, Message: env.Message}
		}
	}

	parts := strings.SplitN(raw, ": ", 2)
	if len(parts) == 2 {
		if status, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
			return JobError{Status: status, Message: parts[1]}
		}
	}

	return JobError{Status: 500, Message: raw}
}
