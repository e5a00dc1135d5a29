package log

// Field names shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldMonth      = "month"
	FieldEntries    = "entries"
	FieldSlider     = "slider"
	FieldValue      = "value"
	FieldTotal      = "total"
	FieldTargetMax  = "target_max"
	FieldUnresolved = "unresolved"
	FieldKey        = "key"
	FieldVersion    = "version"
)

// Component names.
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentFlowGraph  = "flowgraph"
	ComponentAllocation = "allocation"
	ComponentSession    = "session"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentForecast   = "forecast"
	ComponentNotify     = "notify"
	ComponentCache      = "cache"
	ComponentRateLimit  = "rate_limit"
	ComponentTrace      = "trace"
	ComponentBackend    = "backend"
	ComponentCLI        = "cli"
)

// Operation names.
const (
	OpBuild        = "build"
	OpAdjust       = "adjust"
	OpAutoAdjust   = "auto_adjust"
	OpSeed         = "seed"
	OpUndo         = "undo"
	OpReset        = "reset"
	OpLock         = "lock"
	OpRedistribute = "redistribute"
	OpRead         = "read"
	OpWrite        = "write"
	OpDelete       = "delete"
	OpList         = "list"
	OpPublish      = "publish"
	OpExport       = "export"
	OpForecast     = "forecast"
	OpValidate     = "validate"
	OpShutdown     = "shutdown"
	OpStartup      = "startup"
)

// LogFields builds a set of structured attributes.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError is a no-op for a nil error.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithMonth(month string) LogFields {
	f[FieldMonth] = month
	return f
}

// WithAllocation records the outcome of a slider command.
func (f LogFields) WithAllocation(slider string, total, targetMax, unresolved float64) LogFields {
	if slider != "" {
		f[FieldSlider] = slider
	}
	f[FieldTotal] = total
	f[FieldTargetMax] = targetMax
	if unresolved > 0 {
		f[FieldUnresolved] = unresolved
	}
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice flattens the fields into slog key/value pairs.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
