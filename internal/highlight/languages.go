package highlight

import "sort"

// LanguagesVersion identifies the revision of the supported syntax list.
// Bump it whenever a tag is added or removed so stored tags can be audited.
const LanguagesVersion = 3

// PlainText is the tag that disables highlighting.
const PlainText = "text"

// Language binds a stored syntax tag to its display name and the lexer that renders it.
type Language struct {
	Tag   string `json:"tag"`
	Name  string `json:"name"`
	Lexer string `json:"-"`
}

// Languages is the explicit list of syntax tags a paste may carry.
var Languages = []Language{
	{Tag: PlainText, Name: "Plain Text", Lexer: "plaintext"},
	{Tag: "bash", Name: "Bash", Lexer: "bash"},
	{Tag: "c", Name: "C", Lexer: "c"},
	{Tag: "clojure", Name: "Clojure", Lexer: "clojure"},
	{Tag: "cpp", Name: "C++", Lexer: "cpp"},
	{Tag: "csharp", Name: "C#", Lexer: "csharp"},
	{Tag: "css", Name: "CSS", Lexer: "css"},
	{Tag: "dart", Name: "Dart", Lexer: "dart"},
	{Tag: "diff", Name: "Diff", Lexer: "diff"},
	{Tag: "docker", Name: "Docker", Lexer: "docker"},
	{Tag: "elixir", Name: "Elixir", Lexer: "elixir"},
	{Tag: "erlang", Name: "Erlang", Lexer: "erlang"},
	{Tag: "go", Name: "Go", Lexer: "go"},
	{Tag: "graphql", Name: "GraphQL", Lexer: "graphql"},
	{Tag: "haskell", Name: "Haskell", Lexer: "haskell"},
	{Tag: "html", Name: "HTML", Lexer: "html"},
	{Tag: "ini", Name: "INI", Lexer: "ini"},
	{Tag: "java", Name: "Java", Lexer: "java"},
	{Tag: "javascript", Name: "JavaScript", Lexer: "javascript"},
	{Tag: "json", Name: "JSON", Lexer: "json"},
	{Tag: "kotlin", Name: "Kotlin", Lexer: "kotlin"},
	{Tag: "lua", Name: "Lua", Lexer: "lua"},
	{Tag: "make", Name: "Makefile", Lexer: "make"},
	{Tag: "markdown", Name: "Markdown", Lexer: "markdown"},
	{Tag: "nginx", Name: "Nginx configuration file", Lexer: "nginx"},
	{Tag: "objective-c", Name: "Objective-C", Lexer: "objective-c"},
	{Tag: "perl", Name: "Perl", Lexer: "perl"},
	{Tag: "php", Name: "PHP", Lexer: "php"},
	{Tag: "powershell", Name: "PowerShell", Lexer: "powershell"},
	{Tag: "python", Name: "Python", Lexer: "python"},
	{Tag: "r", Name: "R", Lexer: "r"},
	{Tag: "ruby", Name: "Ruby", Lexer: "ruby"},
	{Tag: "rust", Name: "Rust", Lexer: "rust"},
	{Tag: "scala", Name: "Scala", Lexer: "scala"},
	{Tag: "scss", Name: "SCSS", Lexer: "scss"},
	{Tag: "sql", Name: "SQL", Lexer: "sql"},
	{Tag: "swift", Name: "Swift", Lexer: "swift"},
	{Tag: "toml", Name: "TOML", Lexer: "toml"},
	{Tag: "typescript", Name: "TypeScript", Lexer: "typescript"},
	{Tag: "vim", Name: "VimL", Lexer: "vim"},
	{Tag: "xml", Name: "XML", Lexer: "xml"},
	{Tag: "yaml", Name: "YAML", Lexer: "yaml"},
}

var languagesByTag = func() map[string]Language {
	index := make(map[string]Language, len(Languages))
	for _, language := range Languages {
		index[language.Tag] = language
	}
	return index
}()

// Supported reports whether tag is one of the known syntax tags.
func Supported(tag string) bool {
	_, ok := languagesByTag[tag]
	return ok
}

// Name returns the display name for tag, or the tag itself when unknown.
func Name(tag string) string {
	if language, ok := languagesByTag[tag]; ok {
		return language.Name
	}
	return tag
}

// SortedTags returns every supported tag in lexical order.
func SortedTags() []string {
	tags := make([]string, 0, len(Languages))
	for _, language := range Languages {
		tags = append(tags, language.Tag)
	}
	sort.Strings(tags)
	return tags
}
