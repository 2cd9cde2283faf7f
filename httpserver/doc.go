/*
Package httpserver runs a chi based HTTP service with the health endpoints shared by
every binary in this module.

Routes are supplied through the Routes interface. The server adds:

  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Mark the server as not ready; service routes answer 503
  - GET /undrain - Mark the server as ready

Requests are logged with httplogger.LoggingMiddlewareSlog.
*/
package httpserver
