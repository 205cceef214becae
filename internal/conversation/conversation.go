// Package conversation describes the bot dialogues as explicit state
// machines: every (state, event) pair leads to one next state and one action
// the bot has to perform.
package conversation

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned for an event the state does not expect.
var ErrInvalidTransition = errors.New("invalid transition")

type State string

type Event string

type Action string

const (
	StateNew                          State = "new"
	StateAwaitingPrivacyConsent       State = "awaiting_privacy_consent"
	StatePrivacyDeclined              State = "privacy_declined"
	StateAwaitingAuthorization        State = "awaiting_authorization"
	StateAwaitingVacancySelection     State = "awaiting_vacancy_selection"
	StateAwaitingVideoDecision        State = "awaiting_video_decision"
	StateAwaitingVideo                State = "awaiting_video"
	StateAwaitingVideoConfirmation    State = "awaiting_video_confirmation"
	StateAwaitingCriteria             State = "awaiting_criteria"
	StateAwaitingCriteriaConfirmation State = "awaiting_criteria_confirmation"
	StateAwaitingCriteriaFeedback     State = "awaiting_criteria_feedback"
	StateSourcing                     State = "sourcing"
	StateCompleted                    State = "completed"
)

const (
	EventStart             Event = "start"
	EventConsentGiven      Event = "consent_given"
	EventConsentDeclined   Event = "consent_declined"
	EventAuthorized        Event = "authorized"
	EventVacancySelected   Event = "vacancy_selected"
	EventVideoWanted       Event = "video_wanted"
	EventVideoSkipped      Event = "video_skipped"
	EventVideoReceived     Event = "video_received"
	EventVideoConfirmed    Event = "video_confirmed"
	EventVideoRejected     Event = "video_rejected"
	EventCriteriaReady     Event = "criteria_ready"
	EventCriteriaConfirmed Event = "criteria_confirmed"
	EventCriteriaRejected  Event = "criteria_rejected"
	EventFeedbackReceived  Event = "feedback_received"
)

const (
	ActionNone                   Action = ""
	ActionAskPrivacyConsent      Action = "ask_privacy_consent"
	ActionExplainPrivacyRequired Action = "explain_privacy_required"
	ActionSendAuthLink           Action = "send_auth_link"
	ActionAskVacancy             Action = "ask_vacancy"
	ActionAskVideoDecision       Action = "ask_video_decision"
	ActionRequestVideo           Action = "request_video"
	ActionAskVideoConfirmation   Action = "ask_video_confirmation"
	ActionSaveVideoAndAnalyze    Action = "save_video_and_analyze"
	ActionAnalyzeVacancy         Action = "analyze_vacancy"
	ActionSendCriteria           Action = "send_criteria"
	ActionStartSourcing          Action = "start_sourcing"
	ActionAskCriteriaFeedback    Action = "ask_criteria_feedback"
	ActionShowStatus             Action = "show_status"
	ActionShowManagerVideo       Action = "show_manager_video"
	ActionSaveVideo              Action = "save_video"
	ActionSayGoodbye             Action = "say_goodbye"
	ActionWaitForCriteria        Action = "wait_for_criteria"
)

// Transition is the outcome of an event.
type Transition struct {
	From   State
	Event  Event
	To     State
	Action Action
}

type key struct {
	state State
	event Event
}

// Machine is an immutable transition table.
type Machine struct {
	name        string
	transitions map[key]Transition
	prompts     map[State]Action
}

type rule struct {
	from   State
	event  Event
	to     State
	action Action
}

func newMachine(name string, rules []rule, prompts map[State]Action) *Machine {
	m := &Machine{
		name:        name,
		transitions: make(map[key]Transition, len(rules)),
		prompts:     prompts,
	}
	for _, r := range rules {
		m.transitions[key{r.from, r.event}] = Transition{From: r.from, Event: r.event, To: r.to, Action: r.action}
	}
	return m
}

func (m *Machine) Name() string {
	return m.name
}

// Fire returns the transition for event in state. An empty state is treated
// as StateNew.
func (m *Machine) Fire(state State, event Event) (Transition, error) {
	if state == "" {
		state = StateNew
	}

	t, ok := m.transitions[key{state, event}]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s dialogue cannot handle %q in state %q", ErrInvalidTransition, m.name, event, state)
	}

	return t, nil
}

// Can reports whether event is valid in state.
func (m *Machine) Can(state State, event Event) bool {
	_, err := m.Fire(state, event)
	return err == nil
}

// Prompt returns the action that repeats the question of state. It is used
// when the user sends something the state does not expect.
func (m *Machine) Prompt(state State) Action {
	if state == "" {
		state = StateNew
	}
	return m.prompts[state]
}

// Events lists the events state accepts.
func (m *Machine) Events(state State) []Event {
	var events []Event
	for k := range m.transitions {
		if k.state == state {
			events = append(events, k.event)
		}
	}
	return events
}
