package nlp

// Minimal stopword lists for the two languages the source channels use most.
// Lemmatization is out of scope; filtering function words is enough for the
// term-frequency models downstream.

var stopwordsEN = []string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an",
	"and", "any", "are", "aren't", "as", "at", "be", "because", "been",
	"before", "being", "below", "between", "both", "but", "by", "can",
	"can't", "could", "couldn't", "did", "didn't", "do", "does", "doesn't",
	"doing", "don't", "down", "during", "each", "few", "for", "from",
	"further", "get", "got", "had", "has", "have", "haven't", "having", "he",
	"her", "here", "hers", "herself", "him", "himself", "his", "how", "i",
	"i'm", "i've", "if", "in", "into", "is", "isn't", "it", "it's", "its",
	"itself", "just", "like", "me", "more", "most", "my", "myself", "no",
	"nor", "not", "now", "of", "off", "on", "once", "only", "or", "other",
	"our", "ours", "ourselves", "out", "over", "own", "re", "same", "she",
	"should", "so", "some", "such", "than", "that", "that's", "the", "their",
	"theirs", "them", "themselves", "then", "there", "these", "they", "this",
	"those", "through", "to", "too", "under", "until", "up", "very", "was",
	"wasn't", "we", "were", "weren't", "what", "when", "where", "which",
	"while", "who", "whom", "why", "will", "with", "won't", "would",
	"wouldn't", "you", "you're", "your", "yours", "yourself", "yourselves",
}

var stopwordsFR = []string{
	"au", "aux", "avec", "ce", "ces", "cette", "dans", "de", "des", "du",
	"elle", "elles", "en", "et", "eux", "il", "ils", "je", "la", "le", "les",
	"leur", "leurs", "lui", "ma", "mais", "me", "mes", "moi", "mon", "ne",
	"nos", "notre", "nous", "on", "ou", "où", "par", "pas", "plus", "pour",
	"qu", "que", "qui", "sa", "se", "ses", "son", "sur", "ta", "te", "tes",
	"toi", "ton", "tu", "un", "une", "vos", "votre", "vous", "y", "été",
	"être", "avoir", "fait", "faire", "comme", "tout", "tous", "toute",
	"toutes", "bien", "très", "aussi", "donc", "alors", "si", "c'est",
	"j'ai", "ça", "cela", "sont", "est", "était", "suis", "ai", "as", "a",
}
