package repository

import "testing"

func TestBuildLikeConditionByDialect(t *testing.T) {
	condition, argCount := buildLikeConditionByDialect("sqlite", "products.name", " ", "products.description")
	if argCount != 2 {
		t.Fatalf("arg count want 2 got %d", argCount)
	}
	want := `products.name LIKE ? ESCAPE '\' OR products.description LIKE ? ESCAPE '\'`
	if condition != want {
		t.Fatalf("condition mismatch, want %s got %s", want, condition)
	}

	condition, _ = buildLikeConditionByDialect("postgres", "products.name")
	if condition != `products.name ILIKE ? ESCAPE '\'` {
		t.Fatalf("postgres should use ILIKE, got %s", condition)
	}
}

func TestRepeatLikeArgs(t *testing.T) {
	args := repeatLikeArgs("%test%", 3)
	if len(args) != 3 {
		t.Fatalf("args len want 3 got %d", len(args))
	}
	for idx, arg := range args {
		if arg != "%test%" {
			t.Fatalf("args[%d] want %%test%% got %v", idx, arg)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("unexpected escaped value: %s", got)
	}
}
