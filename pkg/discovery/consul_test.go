package discovery

import (
	"testing"

	"github.com/chingu-voyage4/Bears-Team-0/internal/config"
)

func TestRegistration(t *testing.T) {
	sr, err := NewServiceRegistry(
		config.ConsulConfig{ConsulAddress: "127.0.0.1:8500"},
		config.ServerConfig{Port: "8080", ServiceName: "quiz-service", ServiceAddress: "quiz", ServiceID: "quiz-service-1"},
	)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	reg, err := sr.Registration()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if reg.ID != "quiz-service-1" || reg.Name != "quiz-service" || reg.Port != 8080 {
		t.Errorf("Unexpected registration %+v", reg)
	}
	if reg.Check == nil || reg.Check.HTTP != "http://quiz:8080/health" {
		t.Errorf("Unexpected health check %+v", reg.Check)
	}
}

func TestRegistrationRejectsBadPort(t *testing.T) {
	sr, err := NewServiceRegistry(config.ConsulConfig{ConsulAddress: "127.0.0.1:8500"}, config.ServerConfig{Port: "http"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := sr.Registration(); err == nil {
		t.Error("Expected an error for a non-numeric port")
	}
}
