package twilio

import (
	"strconv"

	"github.com/twilio/twilio-go/twiml"
)

// ContentType is the media type of TwiML responses.
const ContentType = "application/xml"

// document renders verbs as a TwiML voice response.
func document(verbs ...twiml.Element) ([]byte, error) {
	out, err := twiml.Voice(verbs)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// Voice controls how replies are spoken and how speech is gathered.
type Voice struct {
	// Voice and Language are used for Say, e.g. "Polly.Amy" and "en-GB".
	Voice    string `json:"voice" yaml:"voice"`
	Language string `json:"language" yaml:"language"`

	// SpeechLanguage is the recognition language for Gather.
	SpeechLanguage string `json:"speech_language" yaml:"speech_language"`
	// Timeout is the Gather timeout in seconds.
	Timeout int    `json:"timeout" yaml:"timeout"`
	Hints   string `json:"hints" yaml:"hints"`
}

// DefaultVoice matches a British Polly voice with US English recognition.
var DefaultVoice = Voice{
	Voice:          "Polly.Amy",
	Language:       "en-GB",
	SpeechLanguage: "en-US",
	Timeout:        2,
	Hints:          "interrupt,stop,wait",
}

func (v Voice) withDefaults() Voice {
	if v.Voice == "" {
		v.Voice = DefaultVoice.Voice
	}
	if v.Language == "" {
		v.Language = DefaultVoice.Language
	}
	if v.SpeechLanguage == "" {
		v.SpeechLanguage = DefaultVoice.SpeechLanguage
	}
	if v.Timeout <= 0 {
		v.Timeout = DefaultVoice.Timeout
	}
	return v
}

func (v Voice) say(text string) *twiml.VoiceSay {
	return &twiml.VoiceSay{Message: text, Voice: v.Voice, Language: v.Language}
}

func play(url string) *twiml.VoicePlay {
	return &twiml.VoicePlay{Url: url}
}

// gather returns a speech Gather that posts back to action. Nested verbs
// are spoken while listening, so the caller can barge in.
func (v Voice) gather(action string, verbs ...twiml.Element) *twiml.VoiceGather {
	return &twiml.VoiceGather{
		Input:               "speech dtmf",
		Action:              action,
		Method:              "POST",
		Timeout:             strconv.Itoa(v.Timeout),
		SpeechTimeout:       "auto",
		SpeechModel:         "phone_call",
		Enhanced:            "true",
		BargeIn:             "true",
		ActionOnEmptyResult: "true",
		Language:            v.SpeechLanguage,
		Hints:               v.Hints,
		FinishOnKey:         "*",
		InnerElements:       verbs,
	}
}
