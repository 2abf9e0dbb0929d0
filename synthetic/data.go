package synthetic

import (
	"fmt"
	"math/rand"

	"babylon/docstore/frame"

	"github.com/google/uuid"
)

// Columns is the column set of a generated frame.
var Columns = []string{"_id", "first_name", "last_name", "age", "balance"}

var firstNames = []string{"John", "Ivan", "Mei", "Amara", "Luca", "Sofia", "Noor", "Tomas"}
var lastNames = []string{"Li", "Wong", "Chong", "Okafor", "Rossi", "Haddad", "Novak", "Silva"}

// GenerateFrame builds a frame of synthetic people records. Each record gets
// a fresh UUID primary key, so repeated generations never collide on upsert.
func GenerateFrame(rows int) (*frame.Frame, error) {
	f, err := frame.New(Columns)
	if err != nil {
		return nil, err
	}

	for i := 0; i < rows; i++ {
		row := frame.Record{
			"_id":        uuid.NewString(),
			"first_name": firstNames[rand.Intn(len(firstNames))],
			"last_name":  lastNames[rand.Intn(len(lastNames))],
			"age":        int64(18 + rand.Intn(60)),
			"balance":    float64(int(rand.Float64()*1000000)) / 100,
		}
		if err := f.Append(row); err != nil {
			return nil, fmt.Errorf("failed to append synthetic record %d: %w", i, err)
		}
	}

	return f, nil
}
