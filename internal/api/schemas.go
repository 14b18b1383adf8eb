package api

import (
	"github.com/cutpilot/cutpilot-agent/internal/agent"
	"github.com/cutpilot/cutpilot-agent/internal/journal"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State   string `json:"state"`
	Version string `json:"version"`
	agent.Status
}

type MessageRequest struct {
	Message string `json:"message"`
}

type RunsResponse struct {
	Runs []*journal.Run `json:"runs"`
}

type RunResponse struct {
	Run       *journal.Run             `json:"run"`
	Commands  []journal.CommandRecord  `json:"commands"`
	Decisions []journal.DecisionRecord `json:"decisions"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
