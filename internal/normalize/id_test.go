package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "2770100123425000001", want: "2770100123425000001"},
		{input: "  2770100123425000001\n", want: "2770100123425000001"},
		{input: ContractURL("2770100123425000001"), want: "2770100123425000001"},
		{input: "https://zakupki.gov.ru/epz/contract/contractCard/payment-info.html?foo=1&reestrNumber=1234567890", want: "1234567890"},
		{input: "see reestrNumber=2770100123425000001 please", want: "2770100123425000001"},
		{input: "12345", wantErr: true},
		{input: "https://zakupki.gov.ru/epz/order/notice.html?regNumber=0373100", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseID(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingID)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
