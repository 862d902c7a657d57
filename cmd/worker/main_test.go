package main

import (
	"testing"

	"github.com/fieldops/fieldops/internal/app"
	_ "github.com/fieldops/fieldops/internal/testing/guard"
)

func TestMainReturnsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	if !app.InTestMode() {
		t.Fatal("expected test mode to be enabled by the guard import")
	}
	main()
}
