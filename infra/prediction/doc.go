// Package prediction implements prediction.ModelClient transports that reach
// an external rating model through a subprocess or an HTTP service. The MQTT
// transport lives in infra/mqtt.
package prediction
