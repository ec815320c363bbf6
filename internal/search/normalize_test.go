package search

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "IPHONE 15 PRO", "iphone 15 pro"},
		{"diacritics folded", "Điện thoại giá rẻ", "dien thoai gia re"},
		{"punctuation to space", "iphone-15:pro!", "iphone 15 pro"},
		{"whitespace collapsed", "  iphone   15  ", "iphone 15"},
		{"mixed", "Điện Thoại SAMSUNG, màu đen!!!", "dien thoai samsung mau den"},
		{"empty", "", ""},
		{"only punctuation", "!!!???", ""},
		{"digits kept", "256gb 1tb", "256gb 1tb"},
		{"underscore kept", "model_x", "model_x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Điện thoại GIÁ RẺ nhất!",
		"iphone 15 pro max 256gb",
		"  samsung,,, galaxy  ",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormalize_AllVietnameseVowels(t *testing.T) {
	got := Normalize("ầấẩẫậ ằắẳẵặ èéẻẽẹ ềếểễệ ìíỉĩị òóỏõọ ồốổỗộ ờớởỡợ ùúủũụ ừứửữự ỳýỷỹỵ đ")
	want := "aaaaa aaaaa eeeee eeeee iiiii ooooo ooooo ooooo uuuuu uuuuu yyyyy d"
	if got != want {
		t.Errorf("vowel folding = %q, want %q", got, want)
	}
}
