package dispatch

import "testing"

func TestUnwrapConnectorEnvelope(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  string
	}{
		{
			name:  "string payload",
			value: `{"schema":{"type":"string"},"payload":"{\"orderId\":42}"}`,
			want:  `{"orderId":42}`,
		},
		{
			name:  "object payload",
			value: `{"schema":{"type":"struct"},"payload":{"orderId":42}}`,
			want:  `{"orderId":42}`,
		},
		{
			name:  "no envelope",
			value: `{"orderId":42}`,
			want:  `{"orderId":42}`,
		},
		{
			name:  "not json",
			value: `plain`,
			want:  `plain`,
		},
		{
			name:  "empty",
			value: ``,
			want:  ``,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := string(UnwrapConnectorEnvelope([]byte(tc.value)))
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
