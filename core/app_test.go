package core

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"

	appcheckkit "github.com/open-rails/firetrust/appcheck"
	credkit "github.com/open-rails/firetrust/credential"
)

func testCredential(t *testing.T, projectID string) *credkit.Credential {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	cred, err := credkit.New(projectID, "svc@"+projectID+".iam.gserviceaccount.com", pemBytes)
	if err != nil {
		t.Fatalf("credential: %v", err)
	}
	return cred
}

func TestNewAppDefaults(t *testing.T) {
	app := NewApp("", testCredential(t, "demo-project"))
	if app.Name() != DefaultAppName {
		t.Errorf("name = %q, want %q", app.Name(), DefaultAppName)
	}
	if app.Tokens() == nil || app.AppCheck() == nil || app.Credential() == nil {
		t.Fatal("app components must be constructed")
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	def := NewApp("", testCredential(t, "demo-project"))
	other := NewApp("secondary", testCredential(t, "other-project"))

	if err := reg.Register(def); err != nil {
		t.Fatalf("register default: %v", err)
	}
	if err := reg.Register(other); err != nil {
		t.Fatalf("register secondary: %v", err)
	}

	if got, ok := reg.Default(); !ok || got != def {
		t.Error("Default() did not return the default app")
	}
	if got, ok := reg.Get("secondary"); !ok || got != other {
		t.Error("Get(secondary) did not return the registered app")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("Get(missing) should report absence")
	}
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(NewApp("dup", testCredential(t, "demo-project"))); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := reg.Register(NewApp("dup", testCredential(t, "demo-project"))); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestRegistryConcurrentReads(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(NewApp("", testCredential(t, "demo-project"))); err != nil {
		t.Fatalf("register: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := reg.Default(); !ok {
				t.Error("default app missing")
			}
		}()
	}
	wg.Wait()
}

func TestAppsShareKeyCache(t *testing.T) {
	shared := appcheckkit.NewKeyCache()
	a := NewApp("a", testCredential(t, "demo-project"), WithSharedKeyCache(shared))
	b := NewApp("b", testCredential(t, "other-project"), WithSharedKeyCache(shared))

	// Both verifiers must be wired; sharing is observable only through
	// fetch behavior, covered in the appcheck package tests.
	if a.AppCheck() == nil || b.AppCheck() == nil {
		t.Fatal("verifiers must be constructed")
	}
}
