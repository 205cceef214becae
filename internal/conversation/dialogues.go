package conversation

var managerMachine = newMachine("manager", []rule{
	{StateNew, EventStart, StateAwaitingPrivacyConsent, ActionAskPrivacyConsent},

	{StateAwaitingPrivacyConsent, EventStart, StateAwaitingPrivacyConsent, ActionAskPrivacyConsent},
	{StateAwaitingPrivacyConsent, EventConsentGiven, StateAwaitingAuthorization, ActionSendAuthLink},
	{StateAwaitingPrivacyConsent, EventConsentDeclined, StatePrivacyDeclined, ActionExplainPrivacyRequired},

	{StatePrivacyDeclined, EventStart, StateAwaitingPrivacyConsent, ActionAskPrivacyConsent},

	{StateAwaitingAuthorization, EventStart, StateAwaitingAuthorization, ActionSendAuthLink},
	{StateAwaitingAuthorization, EventAuthorized, StateAwaitingVacancySelection, ActionAskVacancy},

	{StateAwaitingVacancySelection, EventStart, StateAwaitingVacancySelection, ActionAskVacancy},
	{StateAwaitingVacancySelection, EventVacancySelected, StateAwaitingVideoDecision, ActionAskVideoDecision},

	{StateAwaitingVideoDecision, EventStart, StateAwaitingVideoDecision, ActionAskVideoDecision},
	{StateAwaitingVideoDecision, EventVideoWanted, StateAwaitingVideo, ActionRequestVideo},
	{StateAwaitingVideoDecision, EventVideoSkipped, StateAwaitingCriteria, ActionAnalyzeVacancy},

	{StateAwaitingVideo, EventStart, StateAwaitingVideo, ActionRequestVideo},
	{StateAwaitingVideo, EventVideoReceived, StateAwaitingVideoConfirmation, ActionAskVideoConfirmation},

	{StateAwaitingVideoConfirmation, EventStart, StateAwaitingVideoConfirmation, ActionAskVideoConfirmation},
	{StateAwaitingVideoConfirmation, EventVideoConfirmed, StateAwaitingCriteria, ActionSaveVideoAndAnalyze},
	{StateAwaitingVideoConfirmation, EventVideoRejected, StateAwaitingVideo, ActionRequestVideo},

	{StateAwaitingCriteria, EventStart, StateAwaitingCriteria, ActionWaitForCriteria},
	{StateAwaitingCriteria, EventCriteriaReady, StateAwaitingCriteriaConfirmation, ActionSendCriteria},

	{StateAwaitingCriteriaConfirmation, EventStart, StateAwaitingCriteriaConfirmation, ActionSendCriteria},
	{StateAwaitingCriteriaConfirmation, EventCriteriaConfirmed, StateSourcing, ActionStartSourcing},
	{StateAwaitingCriteriaConfirmation, EventCriteriaRejected, StateAwaitingCriteriaFeedback, ActionAskCriteriaFeedback},

	{StateAwaitingCriteriaFeedback, EventStart, StateAwaitingCriteriaFeedback, ActionAskCriteriaFeedback},
	{StateAwaitingCriteriaFeedback, EventFeedbackReceived, StateAwaitingCriteria, ActionAnalyzeVacancy},

	{StateSourcing, EventStart, StateSourcing, ActionShowStatus},
}, map[State]Action{
	StateNew:                          ActionAskPrivacyConsent,
	StateAwaitingPrivacyConsent:       ActionAskPrivacyConsent,
	StatePrivacyDeclined:              ActionExplainPrivacyRequired,
	StateAwaitingAuthorization:        ActionSendAuthLink,
	StateAwaitingVacancySelection:     ActionAskVacancy,
	StateAwaitingVideoDecision:        ActionAskVideoDecision,
	StateAwaitingVideo:                ActionRequestVideo,
	StateAwaitingVideoConfirmation:    ActionAskVideoConfirmation,
	StateAwaitingCriteria:             ActionWaitForCriteria,
	StateAwaitingCriteriaConfirmation: ActionSendCriteria,
	StateAwaitingCriteriaFeedback:     ActionAskCriteriaFeedback,
	StateSourcing:                     ActionShowStatus,
})

var applicantMachine = newMachine("applicant", []rule{
	{StateNew, EventStart, StateAwaitingPrivacyConsent, ActionAskPrivacyConsent},

	{StateAwaitingPrivacyConsent, EventStart, StateAwaitingPrivacyConsent, ActionAskPrivacyConsent},
	{StateAwaitingPrivacyConsent, EventConsentGiven, StateAwaitingVideo, ActionShowManagerVideo},
	{StateAwaitingPrivacyConsent, EventConsentDeclined, StatePrivacyDeclined, ActionExplainPrivacyRequired},

	{StatePrivacyDeclined, EventStart, StateAwaitingPrivacyConsent, ActionAskPrivacyConsent},

	{StateAwaitingVideo, EventStart, StateAwaitingVideo, ActionShowManagerVideo},
	{StateAwaitingVideo, EventVideoReceived, StateAwaitingVideoConfirmation, ActionAskVideoConfirmation},

	{StateAwaitingVideoConfirmation, EventStart, StateAwaitingVideoConfirmation, ActionAskVideoConfirmation},
	{StateAwaitingVideoConfirmation, EventVideoConfirmed, StateCompleted, ActionSaveVideo},
	{StateAwaitingVideoConfirmation, EventVideoRejected, StateAwaitingVideo, ActionRequestVideo},

	{StateCompleted, EventStart, StateCompleted, ActionSayGoodbye},
}, map[State]Action{
	StateNew:                       ActionAskPrivacyConsent,
	StateAwaitingPrivacyConsent:    ActionAskPrivacyConsent,
	StatePrivacyDeclined:           ActionExplainPrivacyRequired,
	StateAwaitingVideo:             ActionRequestVideo,
	StateAwaitingVideoConfirmation: ActionAskVideoConfirmation,
	StateCompleted:                 ActionSayGoodbye,
})

// Manager is the dialogue of the manager bot: consent, hh.ru authorization,
// vacancy choice, optional video, criteria review and sourcing.
func Manager() *Machine {
	return managerMachine
}

// Applicant is the dialogue of the applicant bot.
func Applicant() *Machine {
	return applicantMachine
}
