package stt

import (
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
)

func TestAudioEncodingFor(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		override string
		want     speechpb.RecognitionConfig_AudioEncoding
		wantErr  bool
	}{
		{name: "webm mime", mimeType: "audio/webm", want: speechpb.RecognitionConfig_WEBM_OPUS},
		{name: "wav mime", mimeType: "audio/wav", want: speechpb.RecognitionConfig_LINEAR16},
		{name: "ogg mime", mimeType: "audio/ogg", want: speechpb.RecognitionConfig_OGG_OPUS},
		{name: "flac mime", mimeType: "audio/flac", want: speechpb.RecognitionConfig_FLAC},
		{name: "override wins", mimeType: "audio/webm", override: "LINEAR16", want: speechpb.RecognitionConfig_LINEAR16},
		{name: "unsupported", mimeType: "audio/mpeg", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := audioEncodingFor(tt.mimeType, tt.override)
			if (err != nil) != tt.wantErr {
				t.Fatalf("audioEncodingFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("audioEncodingFor() = %v, want %v", got, tt.want)
			}
		})
	}
}
