package employee

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindDuplicatesCaseInsensitiveName(t *testing.T) {
	emps := []Employee{
		{Name: "Ann", UserID: "1"},
		{Name: "ann", UserID: "2"},
		{Name: "Bob", UserID: "3"},
	}
	dups := FindDuplicates(emps)
	assert.Equal(t, []Employee{emps[0], emps[1]}, dups)
}

func TestFindDuplicatesSameUserIDNotFlagged(t *testing.T) {
	emps := []Employee{
		{Name: "Ann", UserID: "1"},
		{Name: "ANN ", UserID: "1"},
	}
	assert.Empty(t, FindDuplicates(emps))
}

func TestFindDuplicatesEmptyNamesExcluded(t *testing.T) {
	emps := []Employee{
		{Name: "", UserID: "1"},
		{Name: " ", UserID: "2"},
	}
	assert.Empty(t, FindDuplicates(emps))
}

func TestFindDuplicatesPreservesOrderAndIncludesAllMembers(t *testing.T) {
	emps := []Employee{
		{Name: "Carla", UserID: "5"},
		{Name: "Dan", UserID: "9"},
		{Name: "carla", UserID: "6"},
		{Name: "CARLA", UserID: "5"},
	}
	dups := FindDuplicates(emps)
	assert.Equal(t, []Employee{emps[0], emps[2], emps[3]}, dups)
}
