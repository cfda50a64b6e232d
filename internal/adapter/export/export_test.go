package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/comings/prepaid-api/internal/core/domain"
)

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	return rows
}

func TestCustomerTemplate(t *testing.T) {
	data, err := CustomerTemplate()
	require.NoError(t, err)

	rows := readRows(t, data)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"고객명", "연락처", "잔액"}, rows[0])
	assert.Equal(t, []string{"홍길동", "01012341234", "50000"}, rows[1])
	assert.Equal(t, "0", rows[3][2])
}

func TestCustomers_MasksMissingPhone(t *testing.T) {
	data, err := Customers([]domain.Customer{
		{Name: "김철수", Phone: "01056785678", CurrentBalance: 30000},
		{Name: "박영수", PhoneSuffix: "4321", CurrentBalance: 0},
	})
	require.NoError(t, err)

	rows := readRows(t, data)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"김철수", "01056785678", "30000"}, rows[1])
	assert.Equal(t, "010****4321", rows[2][1])
}

func TestCustomers_Empty(t *testing.T) {
	data, err := Customers(nil)
	require.NoError(t, err)
	assert.Len(t, readRows(t, data), 1)
}

func TestCustomerTemplateCSV(t *testing.T) {
	data, err := CustomerTemplateCSV()
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte(utf8BOM)))

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"고객명", "연락처", "잔액"}, records[0])
	assert.Equal(t, []string{"이영희", "01090129012", "0"}, records[3])
}
