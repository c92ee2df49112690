package service

import (
	"strings"

	"effectharvest/internal/core/domain"
)

// ExtractAssets projects a merged result onto its downloadable assets, in
// result order. Records without a media descriptor or video URL, or whose
// JSON cannot be decoded, produce nothing. Missing titles become "".
func ExtractAssets(result *domain.MergedResult) []domain.AssetDescriptor {
	if result == nil {
		return nil
	}
	descriptors := make([]domain.AssetDescriptor, 0, len(result.Items))
	for _, item := range result.Items {
		d, ok := describe(item)
		if ok {
			descriptors = append(descriptors, d)
		}
	}
	return descriptors
}

func describe(item domain.RawItem) (domain.AssetDescriptor, bool) {
	view, err := item.View()
	if err != nil {
		return domain.AssetDescriptor{}, false
	}
	media := view.Media()
	if media == nil || strings.TrimSpace(media.VideoURL) == "" {
		return domain.AssetDescriptor{}, false
	}

	d := domain.AssetDescriptor{
		VideoURL:     strings.TrimSpace(media.VideoURL),
		Format:       media.Format,
		QualityLabel: media.Definition,
		HeightPx:     media.Height,
		WidthPx:      media.Width,
		SizeBytes:    media.Size,
	}
	if attr := view.CommonAttr; attr != nil {
		d.SourceItemID = attr.ID
		d.Title = attr.Title
		d.Description = attr.Description
	}
	return d, true
}
