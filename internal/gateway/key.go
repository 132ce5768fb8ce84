package gateway

import "strings"

// SessionKey addresses one live session. Two tenants may use the same
// instance id without colliding.
type SessionKey struct {
	Token      string
	InstanceID string
}

func NewSessionKey(token, instanceID string) (SessionKey, error) {
	token = strings.TrimSpace(token)
	instanceID = strings.TrimSpace(instanceID)
	if token == "" {
		return SessionKey{}, NewError(KindValidation, "token is required", token, instanceID, nil)
	}
	if instanceID == "" {
		return SessionKey{}, NewError(KindValidation, "instance id is required", token, instanceID, nil)
	}
	return SessionKey{Token: token, InstanceID: instanceID}, nil
}

// String renders the key in the form used for credential directories
// and log fields.
func (k SessionKey) String() string {
	return k.Token + "_" + k.InstanceID
}
