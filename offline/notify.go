package offline

// Severity classifies a user-facing notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier surfaces user-relevant sync outcomes. The engine calls it with a
// severity and a message on every user-relevant transition; rendering is the
// host's concern.
type Notifier func(sev Severity, msg string)

// NopNotifier discards all notifications.
func NopNotifier(Severity, string) {}

// Logger is the injected observability sink. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}
