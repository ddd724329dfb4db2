// Package logger wraps zap for the conda-buildenv binary:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing,
//   - leveled convenience functions (Infof, WarnKV, ErrorKV, ...).
//
// Every step of the provisioning run receives a context and logs through it,
// so the step name and its key-value pairs travel with the call chain.
package logger
