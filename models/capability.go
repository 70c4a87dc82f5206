package models

type Capability string

const (
	CapManageUsers          Capability = "manage-users"
	CapViewPortfolio        Capability = "view-portfolio-analytics"
	CapReviewSiteLogs       Capability = "review-site-logs"
	CapSubmitSiteLogs       Capability = "submit-site-logs"
	CapSubmitSafetyReports  Capability = "submit-safety-reports"
	CapViewExecutiveSummary Capability = "view-executive-summary"
)

var Capabilities = []Capability{
	CapManageUsers,
	CapViewPortfolio,
	CapReviewSiteLogs,
	CapSubmitSiteLogs,
	CapSubmitSafetyReports,
	CapViewExecutiveSummary,
}

func (c Capability) Valid() bool {
	for _, known := range Capabilities {
		if c == known {
			return true
		}
	}
	return false
}

// View is the dashboard a client renders for an active profile.
type View string

const (
	ViewAdmin     View = "admin"
	ViewExecutive View = "executive"
	ViewPortfolio View = "portfolio"
	ViewReview    View = "review"
	ViewSiteLog   View = "site-log"
	ViewSafety    View = "safety"
	ViewNone      View = ""
)

type Screen string

const (
	ScreenInitializing    Screen = "initializing"
	ScreenUnauthenticated Screen = "unauthenticated"
	ScreenNoProfile       Screen = "authenticated-no-profile"
	ScreenPendingApproval Screen = "pending-approval"
	ScreenRevoked         Screen = "revoked"
	ScreenActiveDashboard Screen = "active-dashboard"
)

// Route is the derived navigation state for one session.
type Route struct {
	Screen         Screen       `json:"screen"`
	View           View         `json:"view,omitempty"`
	Capabilities   []Capability `json:"capabilities"`
	User           *User        `json:"user,omitempty"`
	ImpersonatedBy string       `json:"impersonatedBy,omitempty"`
	Actions        []string     `json:"actions,omitempty"`
	Error          string       `json:"error,omitempty"`
}
