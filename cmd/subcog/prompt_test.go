package main

import (
	"reflect"
	"testing"

	"github.com/zircote/subcog/internal/prompts"
)

func TestParsePromptVars(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    prompts.Vars
		wantErr bool
	}{
		{"empty", nil, prompts.Vars{}, false},
		{"single", []string{"name=widget"}, prompts.Vars{"name": "widget"}, false},
		{"multiple", []string{"a=1", "b=2"}, prompts.Vars{"a": "1", "b": "2"}, false},
		{"value contains equals", []string{"url=http://x?y=1"}, prompts.Vars{"url": "http://x?y=1"}, false},
		{"missing equals", []string{"bogus"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePromptVars(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parsePromptVars(%v) expected error, got nil", tt.raw)
				}
				return
			}
			if err != nil {
				t.Errorf("parsePromptVars(%v) returned unexpected error: %v", tt.raw, err)
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parsePromptVars(%v) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}
