package main

import "testing"

func TestAddKeepsSourceByDefault(t *testing.T) {
	t.Cleanup(func() { addCmd.Flags().Set("move", "false") })

	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"default", nil, true},
		{"move", []string{"--move"}, false},
		{"move false", []string{"--move=false"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := addCmd.Flags().Set("move", "false"); err != nil {
				t.Fatal(err)
			}
			if err := addCmd.Flags().Parse(tt.args); err != nil {
				t.Fatalf("Parse(%v) error = %v", tt.args, err)
			}
			if got := keepSource(addCmd); got != tt.want {
				t.Errorf("keepSource() = %v, want %v", got, tt.want)
			}
		})
	}
}
