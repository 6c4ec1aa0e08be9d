package session

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/IRL-CT/robotability/internal/layers"
	"github.com/IRL-CT/robotability/internal/model"
)

// Message types exchanged with the map client.
const (
	TypeUpdateLayers     = "updateLayers"
	TypeFlyTo            = "flyTo"
	TypeError            = "error"
	TypeSetLayers        = "setLayers"
	TypeSelectDeployment = "selectDeployment"
)

// FlyToZoom is the zoom level the camera settles at over a deployment.
const FlyToZoom = 16

// Envelope wraps every message on the wire.
type Envelope struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message,omitempty"`
}

// UpdateLayers replaces the client's visible layers.
type UpdateLayers struct {
	Data   *layers.Payload `json:"data"`
	Colors []model.RGB     `json:"colors"`
}

// FlyTo moves the client camera.
type FlyTo struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Zoom      float64 `json:"zoom"`
}

// ErrorMessage reports a failure the client should surface.
type ErrorMessage struct {
	Error string `json:"error"`
}

// SetLayers is sent when the layer checkboxes change.
type SetLayers struct {
	Layers []string `json:"layers"`
}

// SelectDeployment is sent when a deployment is picked from the list.
type SelectDeployment struct {
	Name string `json:"name"`
}

// NewEnvelope marshals v as a message of the given type.
func NewEnvelope(kind string, v any) (Envelope, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, eris.Wrapf(err, "session: marshal %s", kind)
	}
	return Envelope{Type: kind, Message: raw}, nil
}

// Decode unmarshals the envelope body into v.
func (e Envelope) Decode(v any) error {
	if len(e.Message) == 0 {
		return eris.Errorf("session: %s message has no body", e.Type)
	}
	if err := json.Unmarshal(e.Message, v); err != nil {
		return eris.Wrapf(err, "session: decode %s", e.Type)
	}
	return nil
}
