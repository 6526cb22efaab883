package discovery

import (
	"github.com/zainbaq/medical-ml/registry"
)

// DefaultPrefix is the subject prefix used when none is configured
const DefaultPrefix = "registry"

// EventSubject returns the subject store events of type t are published on,
// for example "registry.services.registered".
func EventSubject(prefix string, t registry.EventType) string {
	return servicesSubject(prefix) + "." + string(t)
}

// ListSubject answers with every registered service
func ListSubject(prefix string) string {
	return servicesSubject(prefix) + ".list"
}

// GetSubject answers with one service record
func GetSubject(prefix string) string {
	return servicesSubject(prefix) + ".get"
}

func servicesSubject(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + ".services"
}
