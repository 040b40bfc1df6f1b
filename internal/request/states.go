package request

import (
	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"
)

const (
	StateConfigured      = "Configured"
	StateConnecting      = "Connecting"
	StateRedirected      = "Redirected"
	StateTransferring    = "Transferring"
	StateCompleted       = "Completed"
	StatePartiallyFailed = "PartiallyFailed"
	StateFailed          = "Failed"
)

const (
	eventConnect   = "Connect"
	eventRedirect  = "Redirect"
	eventTransfer  = "Transfer"
	eventComplete  = "Complete"
	eventInterrupt = "Interrupt"
	eventFail      = "Fail"
)

func newStateMachine(id string) *fsm.FSM {
	return fsm.NewFSM(
		StateConfigured,
		fsm.Events{
			{Name: eventConnect, Src: []string{StateConfigured, StateRedirected}, Dst: StateConnecting},
			{Name: eventRedirect, Src: []string{StateConnecting}, Dst: StateRedirected},
			{Name: eventTransfer, Src: []string{StateConnecting, StateRedirected}, Dst: StateTransferring},
			{Name: eventComplete, Src: []string{StateTransferring}, Dst: StateCompleted},
			{Name: eventInterrupt, Src: []string{StateTransferring}, Dst: StatePartiallyFailed},
			{Name: eventFail, Src: []string{StateConfigured, StateConnecting, StateRedirected, StateTransferring}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(e *fsm.Event) {
				log.Debug().Str("op", "request/states").Str("req", id).Msgf("request state %s -> %s", e.Src, e.Dst)
			},
		},
	)
}

// IsTerminal reports whether state ends an execution.
func IsTerminal(state string) bool {
	return state == StateCompleted || state == StatePartiallyFailed || state == StateFailed
}
