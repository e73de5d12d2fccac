// Package langs holds the language support tables for the ASR vendors and the
// translator backends.
package langs

import "strings"

// sourceLangs are the streaming language codes accepted by the Deepgram
// endpoint. The AssemblyAI endpoint autodetects and ignores source_lang.
var sourceLangs = map[string]struct{}{
	"multi": {},
	"bg":    {}, "ca": {}, "cs": {}, "da": {}, "da-DK": {},
	"de": {}, "de-CH": {}, "el": {},
	"en": {}, "en-AU": {}, "en-GB": {}, "en-IN": {}, "en-NZ": {}, "en-US": {},
	"es": {}, "es-419": {}, "et": {}, "fi": {},
	"fr": {}, "fr-CA": {},
	"hi": {}, "hi-Latn": {}, "hu": {},
	"id": {}, "it": {}, "ja": {},
	"ko": {}, "ko-KR": {}, "lt": {}, "lv": {},
	"ms": {}, "nl": {}, "nl-BE": {}, "no": {},
	"pl": {}, "pt": {}, "pt-BR": {}, "pt-PT": {},
	"ro": {}, "ru": {}, "sk": {},
	"sv": {}, "sv-SE": {},
	"ta": {}, "taq": {}, "th": {}, "th-TH": {},
	"tr": {}, "uk": {}, "vi": {},
	"zh": {}, "zh-CN": {}, "zh-HK": {}, "zh-Hans": {}, "zh-Hant": {}, "zh-TW": {},
	"af": {}, "ar": {}, "he": {}, "sr": {}, "sw": {},
}

// targetLangs maps the target_lang query value to the English language name
// used in translator prompts. Any language the LLM backend can produce is
// accepted; the DeepL backend additionally requires an entry in deepLTargets.
var targetLangs = map[string]string{
	"af": "Afrikaans", "am": "Amharic", "ar": "Arabic", "as": "Assamese",
	"az": "Azerbaijani", "ba": "Bashkir", "be": "Belarusian", "bg": "Bulgarian",
	"bn": "Bengali", "bo": "Tibetan", "br": "Breton", "bs": "Bosnian",
	"ca": "Catalan", "cs": "Czech", "cy": "Welsh", "da": "Danish",
	"de": "German", "el": "Greek", "en": "English", "en-GB": "British English",
	"en-US": "American English", "eo": "Esperanto", "es": "Spanish",
	"et": "Estonian", "eu": "Basque", "fa": "Persian", "fi": "Finnish",
	"fo": "Faroese", "fr": "French", "ga": "Irish", "gl": "Galician",
	"gu": "Gujarati", "ha": "Hausa", "haw": "Hawaiian", "he": "Hebrew",
	"hi": "Hindi", "hr": "Croatian", "ht": "Haitian Creole", "hu": "Hungarian",
	"hy": "Armenian", "id": "Indonesian", "is": "Icelandic", "it": "Italian",
	"ja": "Japanese", "jw": "Javanese", "ka": "Georgian", "kk": "Kazakh",
	"km": "Khmer", "kn": "Kannada", "ko": "Korean", "la": "Latin",
	"lb": "Luxembourgish", "ln": "Lingala", "lo": "Lao", "lt": "Lithuanian",
	"lv": "Latvian", "mg": "Malagasy", "mi": "Maori", "mk": "Macedonian",
	"ml": "Malayalam", "mn": "Mongolian", "mr": "Marathi", "ms": "Malay",
	"mt": "Maltese", "my": "Burmese", "ne": "Nepali", "nl": "Dutch",
	"nn": "Norwegian Nynorsk", "no": "Norwegian", "oc": "Occitan",
	"pa": "Punjabi", "pl": "Polish", "ps": "Pashto", "pt": "Portuguese",
	"pt-BR": "Brazilian Portuguese", "pt-PT": "European Portuguese",
	"ro": "Romanian", "ru": "Russian", "sa": "Sanskrit", "sd": "Sindhi",
	"si": "Sinhala", "sk": "Slovak", "sl": "Slovenian", "sn": "Shona",
	"so": "Somali", "sq": "Albanian", "sr": "Serbian", "su": "Sundanese",
	"sv": "Swedish", "sw": "Swahili", "ta": "Tamil", "te": "Telugu",
	"tg": "Tajik", "th": "Thai", "tk": "Turkmen", "tl": "Tagalog",
	"tr": "Turkish", "tt": "Tatar", "uk": "Ukrainian", "ur": "Urdu",
	"uz": "Uzbek", "vi": "Vietnamese", "yi": "Yiddish", "yo": "Yoruba",
	"zh": "Chinese", "zh-Hans": "Simplified Chinese",
	"zh-Hant": "Traditional Chinese", "zu": "Zulu",
}

// deepLTargets maps target_lang values to DeepL target_lang codes.
var deepLTargets = map[string]string{
	"ar": "AR", "bg": "BG", "cs": "CS", "da": "DA", "de": "DE", "el": "EL",
	"en": "EN-US", "en-GB": "EN-GB", "en-US": "EN-US", "es": "ES", "et": "ET",
	"fi": "FI", "fr": "FR", "he": "HE", "hu": "HU", "id": "ID", "it": "IT",
	"ja": "JA", "ko": "KO", "lt": "LT", "lv": "LV", "nb": "NB", "no": "NB",
	"nl": "NL", "pl": "PL", "pt": "PT-PT", "pt-BR": "PT-BR", "pt-PT": "PT-PT",
	"ro": "RO", "ru": "RU", "sk": "SK", "sl": "SL", "sv": "SV", "th": "TH",
	"tr": "TR", "uk": "UK", "vi": "VI",
	"zh": "ZH-HANS", "zh-Hans": "ZH-HANS", "zh-Hant": "ZH-HANT",
}

// formalitySupported lists DeepL target codes that accept the formality
// parameter.
var formalitySupported = map[string]struct{}{
	"DE": {}, "ES": {}, "FR": {}, "IT": {}, "JA": {}, "NL": {},
	"PL": {}, "PT-BR": {}, "PT-PT": {}, "RU": {},
}

// customInstructionLangs lists base DeepL codes that accept the
// custom_instructions parameter (quality_optimized model only).
var customInstructionLangs = map[string]struct{}{
	"DE": {}, "EN": {}, "ES": {}, "FR": {}, "IT": {}, "JA": {},
	"KO": {}, "NL": {}, "PL": {}, "PT": {}, "RU": {}, "ZH": {},
}

// ValidSource reports whether code is an accepted Deepgram source language.
func ValidSource(code string) bool {
	_, ok := sourceLangs[code]
	return ok
}

// ValidTarget reports whether code is an accepted target language.
func ValidTarget(code string) bool {
	_, ok := targetLangs[code]
	return ok
}

// DisplayName returns the English name used in translator prompts, falling
// back to the raw code for unknown values.
func DisplayName(code string) string {
	if name, ok := targetLangs[code]; ok {
		return name
	}
	return code
}

// DeepLTarget returns the DeepL target code for a target_lang value and
// whether DeepL supports it at all.
func DeepLTarget(code string) (string, bool) {
	dl, ok := deepLTargets[code]
	return dl, ok
}

// SupportsFormality reports whether the DeepL target code accepts the
// formality parameter.
func SupportsFormality(deepLCode string) bool {
	_, ok := formalitySupported[deepLCode]
	return ok
}

// SupportsCustomInstructions reports whether the DeepL target accepts
// custom_instructions. Only the base code matters (PT-BR -> PT).
func SupportsCustomInstructions(deepLCode string) bool {
	base, _, _ := strings.Cut(deepLCode, "-")
	_, ok := customInstructionLangs[base]
	return ok
}
