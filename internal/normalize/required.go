package normalize

// Missing-field codes returned by State.Missing, in check order.
const (
	MissingPackage         = "MISSING_PACKAGE"
	MissingRecipientType   = "MISSING_RECIPIENT_TYPE"
	MissingPowerBalance    = "MISSING_POWER_BALANCE"
	MissingRelImportance   = "MISSING_REL_IMPORTANCE"
	MissingRelContinuity   = "MISSING_REL_CONTINUITY"
	FactsTooShort          = "FACTS_TOO_SHORT"
	MissingDirection       = "MISSING_DIRECTION"
	MissingActionObjective = "MISSING_ACTION_OBJECTIVE"
	MissingTone            = "MISSING_TONE"
	MissingDetail          = "MISSING_DETAIL"
)

// MinFactsLength is the shortest what_happened accepted for generation.
const MinFactsLength = 40

// Missing returns the codes of every required field that is absent. An empty
// result means the state can be sent to generation.
func (s State) Missing() []string {
	var missing []string
	check := func(absent bool, code string) {
		if absent {
			missing = append(missing, code)
		}
	}

	check(s.Paywall.Package.IsZero(), MissingPackage)
	check(s.Target.RecipientType.IsZero(), MissingRecipientType)
	check(s.Target.PowerBalance.IsZero(), MissingPowerBalance)
	check(s.Relationship.Importance.IsZero(), MissingRelImportance)
	check(s.Relationship.Continuity.IsZero(), MissingRelContinuity)
	check(s.FactsLength() < MinFactsLength, FactsTooShort)
	check(s.Strategy.Direction.IsZero(), MissingDirection)
	check(s.Strategy.ActionObjective.IsZero(), MissingActionObjective)
	check(s.Strategy.Tone.IsZero(), MissingTone)
	check(s.Strategy.Detail.IsZero(), MissingDetail)

	return missing
}
