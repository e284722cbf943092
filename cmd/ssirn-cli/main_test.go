package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    options
		wantErr bool
	}{
		{"convert one day", options{camera: "cam1", date: "20260204"}, false},
		{"convert range", options{camera: "cam1", date: "20260201", to: "20260203", delete: true}, false},
		{"resize one day", options{camera: "cam1", date: "20260204", resize: true}, false},
		{"resize all", options{camera: "cam1", resize: true, all: true}, false},
		{"missing date", options{camera: "cam1"}, true},
		{"all without resize", options{camera: "cam1", date: "20260204", all: true}, true},
		{"range with resize", options{camera: "cam1", date: "20260201", to: "20260203", resize: true}, true},
		{"no camera", options{date: "20260204"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
