package keyword

import "github.com/kirillkom/ebook-catalog/internal/core/domain"

// Rule maps a keyword set to a category. MatchPath extends matching to the file path.
type Rule struct {
	Category  string   `yaml:"category"`
	Keywords  []string `yaml:"keywords"`
	MatchPath bool     `yaml:"match_path"`
}

// DefaultRules is evaluated top to bottom; the first matching rule wins.
func DefaultRules() []Rule {
	return []Rule{
		{
			Category:  domain.CategoryIT,
			MatchPath: true,
			Keywords: []string{
				"python", "java", "javascript", "c#", "c++", "sql", "database", "server",
				"network", "security", "hacking", "linux", "aws", "docker", "kubernetes",
				"react", "vue", "angular", "spring", "django", "flask", "coding",
				"프로그래밍", "코딩", "개발자", "서버", "데이터베이스", "보안", "해킹",
			},
		},
		{
			Category: domain.CategorySelfHelp,
			Keywords: []string{
				"습관", "성공", "부자", "성장", "심리", "마음", "자존감", "자기계발",
				"부의", "성품", "인생", "변화",
			},
		},
		{
			Category: domain.CategoryEconomy,
			Keywords: []string{
				"경제", "경영", "투자", "주식", "부동산", "돈", "재테크", "마케팅", "비즈니스",
			},
		},
		{
			Category: domain.CategoryLiterature,
			Keywords: []string{
				"소설", "문학", "시", "에세이", "이야기",
			},
		},
	}
}
