package constants

// Downstream tenant service names. A bearer token's service_name claim
// must match the route's tenant exactly.
const (
	ServiceECare             = "ecare"
	ServiceGeorgetown        = "georgetown"
	ServiceChronicCareBridge = "chronic_care_bridge"
	ServiceAnarcare          = "anarcare"
)

// AllServices lists every tenant the gateway fronts.
var AllServices = []string{
	ServiceECare,
	ServiceGeorgetown,
	ServiceChronicCareBridge,
	ServiceAnarcare,
}

// Guest chat intents.
const (
	IntentGeneral     = "general"
	IntentRagInfo     = "rag_info"
	IntentAppointment = "appointment"
	IntentTicket      = "ticket"
)

// Follow-on flows entered when a stashed intent resumes after
// authentication.
const (
	FlowBookingAppointment = "booking_appointment"
	FlowCreatingTicket     = "creating_ticket"
)
